package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "")
	t.Setenv("PROFIT_POLICY", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.CheckoutMaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.CheckoutMaxAttempts)
	}
	if cfg.CheckoutCommitTimeout != 5*time.Second {
		t.Fatalf("expected 5s commit timeout, got %s", cfg.CheckoutCommitTimeout)
	}
	if cfg.ProfitPolicy != "cost_basis" {
		t.Fatalf("expected cost_basis, got %q", cfg.ProfitPolicy)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "7")
	t.Setenv("ALLOWED_ORIGINS", "https://kasir.example.com, http://localhost:3000 ,")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "0")
	t.Setenv("REPORT_TIMEZONE", "Not/AZone")

	cfg := Load()
	if cfg.CheckoutMaxAttempts != 7 {
		t.Fatalf("expected 7 attempts, got %d", cfg.CheckoutMaxAttempts)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.ReportCacheTTL != 0 {
		t.Fatalf("expected cache disabled, got %s", cfg.ReportCacheTTL)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("unknown zone must fall back to UTC")
	}
}
