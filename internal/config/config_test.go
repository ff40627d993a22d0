package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "VERIFICATION_BASE_URL", "SESSION_TTL",
		"CORS_ALLOWED_ORIGINS", "ALLOWED_HOST_ORIGINS", "USE_VERIFICATION_SERVICE", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.VerificationBaseURL != "https://omnitrix.servicesmanagement.us" {
		t.Fatalf("expected default verification base url, got %s", cfg.VerificationBaseURL)
	}
	if cfg.UseVerificationService {
		t.Fatalf("expected verification service disabled by default")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.AllowedHostOrigins != nil {
		t.Fatalf("expected no host origin filtering by default, got %v", cfg.AllowedHostOrigins)
	}
	if cfg.RateLimitRPS != 5 {
		t.Fatalf("expected default rate, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PUBLIC_BASE_URL", "https://chat.example.com/")
	t.Setenv("USE_VERIFICATION_SERVICE", "true")
	t.Setenv("VERIFICATION_TIMEOUT", "3s")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ALLOWED_HOST_ORIGINS", "https://shop.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.PublicBaseURL != "https://chat.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
	if !cfg.UseVerificationService {
		t.Fatalf("expected verification service enabled")
	}
	if cfg.VerificationTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.VerificationTimeout)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Fatalf("expected session ttl override, got %s", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected two cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if len(cfg.AllowedHostOrigins) != 1 {
		t.Fatalf("expected host origin override, got %v", cfg.AllowedHostOrigins)
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 7 {
		t.Fatalf("expected rate limit override, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}
