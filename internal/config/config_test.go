package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("BUDGET_ALERT_RATIO", "0.9")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RateLimitRPS != 5 {
		t.Errorf("RateLimitRPS = %v, want fallback 5", cfg.RateLimitRPS)
	}
	if cfg.BudgetAlertRatio != 0.9 {
		t.Errorf("BudgetAlertRatio = %v, want 0.9", cfg.BudgetAlertRatio)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "5432", DBName: "ledger", DBSSLMode: "disable"}
	want := "postgres://u:p@db:5432/ledger?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
