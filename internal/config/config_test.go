package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Ride.MaxPinAttempts != 3 {
		t.Errorf("expected 3 PIN attempts, got %d", cfg.Ride.MaxPinAttempts)
	}
	if cfg.Ride.PinLockoutTTL != 15*time.Minute {
		t.Errorf("expected 15m lockout, got %v", cfg.Ride.PinLockoutTTL)
	}
	if cfg.RabbitMQ.Enabled {
		t.Error("expected RabbitMQ disabled by default")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PIN_MAX_ATTEMPTS", "5")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RABBITMQ_ENABLED", "true")
	t.Setenv("REDIS_DB", "4")

	cfg := Load()

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Ride.MaxPinAttempts != 5 {
		t.Errorf("expected 5 PIN attempts, got %d", cfg.Ride.MaxPinAttempts)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("expected 2h token ttl, got %v", cfg.Auth.TokenTTL)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("expected RabbitMQ enabled")
	}
	if cfg.Redis.DB != 4 {
		t.Errorf("expected redis db 4, got %d", cfg.Redis.DB)
	}
}

func TestEarningsConfig_Location(t *testing.T) {
	if loc := (EarningsConfig{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Errorf("expected UTC fallback, got %v", loc)
	}
	if loc := (EarningsConfig{Timezone: "UTC"}).Location(); loc.String() != "UTC" {
		t.Errorf("expected UTC, got %v", loc)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		level   string
		wantErr error
	}{
		{name: "default secret outside debug", secret: DefaultJWTSecret, level: "info", wantErr: ErrDefaultJWTSecret},
		{name: "default secret in debug", secret: DefaultJWTSecret, level: "debug"},
		{name: "configured secret", secret: "s3cret", level: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Log: LogConfig{Level: tt.level}, Auth: AuthConfig{JWTSecret: tt.secret}}
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_UnsetSecretFailsValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "info")

	cfg := Load()

	if !cfg.Auth.UsesDefaultSecret() {
		t.Errorf("expected default secret, got %q", cfg.Auth.JWTSecret)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrDefaultJWTSecret) {
		t.Errorf("expected ErrDefaultJWTSecret, got %v", err)
	}
}
