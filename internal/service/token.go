package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taxitap/internal/domain"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	UserID   string      `json:"uid"`
	Role     domain.Role `json:"role"`
	DeviceID string      `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration, clock Clock) *TokenIssuer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue signs a token for the user's current role, bound to deviceID when given.
func (t *TokenIssuer) Issue(user *domain.User, deviceID string) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)

	claims := &Claims{
		UserID:   user.ID,
		Role:     user.CurrentActiveRole,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
