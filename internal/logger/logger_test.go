package logger

import "testing"

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		level string
		debug bool
	}{
		{"debug", true},
		{"info", false},
		{"error", false},
		{"bogus", false},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			l, err := New("taxitap", tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := l.Core().Enabled(-1); got != tc.debug {
				t.Errorf("expected debug enabled=%v, got %v", tc.debug, got)
			}
		})
	}
}
