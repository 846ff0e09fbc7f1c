package config

import (
	"testing"
	"time"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KEEPALIVE_URL", "")
	t.Setenv("RENDER_EXTERNAL_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OTP.TTL != 3*time.Hour {
		t.Errorf("Expected OTP TTL 3h, got %s", cfg.OTP.TTL)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Keepalive.URL != "" {
		t.Errorf("Expected no keepalive URL, got %q", cfg.Keepalive.URL)
	}
	if cfg.Redis.StatsTTL != 5*time.Minute {
		t.Errorf("Expected stats TTL 5m, got %s", cfg.Redis.StatsTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OTP_TTL", "90m")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("KEEPALIVE_URL", "")
	t.Setenv("RENDER_EXTERNAL_URL", "https://example.onrender.com")
	t.Setenv("FRONTEND_URL", "https://shop.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OTP.TTL != 90*time.Minute {
		t.Errorf("Expected OTP TTL 90m, got %s", cfg.OTP.TTL)
	}
	if cfg.Database.MaxOpenConns != 7 {
		t.Errorf("Expected 7 open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("Expected auto migrate to be enabled")
	}
	if cfg.Keepalive.URL != "https://example.onrender.com" {
		t.Errorf("Expected keepalive to fall back to RENDER_EXTERNAL_URL, got %q", cfg.Keepalive.URL)
	}
	if cfg.SMTP.FrontendURL != "https://shop.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.SMTP.FrontendURL)
	}
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "two")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("Expected default redis db, got %d", cfg.Redis.DB)
	}
}
