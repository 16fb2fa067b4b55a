package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"taxitap/internal/domain"
	"taxitap/internal/service"
)

type fixedNow struct{ t time.Time }

func (f fixedNow) Now() time.Time { return f.t }

// fakeSessions maps each active device to the user signed in on it.
type fakeSessions struct {
	owners  map[string]string
	touched []string
}

func (s *fakeSessions) Heartbeat(ctx context.Context, userID, deviceID string) error {
	s.touched = append(s.touched, deviceID)
	if s.owners[deviceID] != userID {
		return service.ErrSessionInactive
	}
	return nil
}

func newAuthRouter(tokens TokenParser, sessions SessionHeartbeat) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(tokens, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": Role(c), "device_id": DeviceID(c)})
	})
	return r
}

func TestAuth(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	tokens := service.NewTokenIssuer("secret", time.Hour, fixedNow{now})
	user := &domain.User{ID: "U1", CurrentActiveRole: domain.RoleDriver}

	active, _, err := tokens.Issue(user, "devA")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	loggedOut, _, _ := tokens.Issue(user, "devB")
	takenOver, _, _ := tokens.Issue(user, "devC")
	sessions := &fakeSessions{owners: map[string]string{"devA": "U1", "devC": "U2"}}
	router := newAuthRouter(tokens, sessions)

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + active, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + active, http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"logged out device", "Bearer " + loggedOut, http.StatusUnauthorized},
		{"device signed in to another user", "Bearer " + takenOver, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("expected status %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}

	if len(sessions.touched) != 3 {
		t.Errorf("expected 3 heartbeats, got %v", sessions.touched)
	}
}
