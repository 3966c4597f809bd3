package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("IPN_TIMEOUT", "")
	t.Setenv("OTP_REFERENCE", "")
	t.Setenv("RETURN_POLL_ATTEMPTS", "")
	t.Setenv("RETURN_URL", "")

	cfg := Load()

	if cfg.Port != "8000" {
		t.Errorf("Expected port '8000', got '%s'", cfg.Port)
	}
	if cfg.IPNTimeout != 10*time.Second {
		t.Errorf("Expected IPN timeout 10s, got %s", cfg.IPNTimeout)
	}
	if cfg.OtpReference != "123456" {
		t.Errorf("Expected OTP reference '123456', got '%s'", cfg.OtpReference)
	}
	if cfg.ReturnURL != "http://localhost:8000/student/finance/payment-return" {
		t.Errorf("Expected return URL on the API landing, got '%s'", cfg.ReturnURL)
	}
	if cfg.ReturnPollAttempts != 5 {
		t.Errorf("Expected 5 poll attempts, got %d", cfg.ReturnPollAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("IPN_TIMEOUT", "3s")
	t.Setenv("RETURN_POLL_ATTEMPTS", "2")
	t.Setenv("SESSION_TTL", "not-a-duration")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Expected port '9000', got '%s'", cfg.Port)
	}
	if cfg.IPNTimeout != 3*time.Second {
		t.Errorf("Expected IPN timeout 3s, got %s", cfg.IPNTimeout)
	}
	if cfg.ReturnPollAttempts != 2 {
		t.Errorf("Expected 2 poll attempts, got %d", cfg.ReturnPollAttempts)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("Expected invalid TTL to fall back to 15m, got %s", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("PAYMENT_SECRET_KEY", "")
	t.Setenv("JWT_SECRET", "jwt")
	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty payment secret")
	}

	cfg.PaymentSecret = "secret"
	cfg.JWTSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty JWT secret")
	}

	cfg.JWTSecret = "jwt"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg.ReturnPollAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero poll attempts")
	}
}
