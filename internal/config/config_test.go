package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParseBoolEnv проверяет разбор флагов и значение по умолчанию.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("SCHEDULER_ENABLED", " false ")

	got, err := parseBoolEnv("SCHEDULER_ENABLED", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got {
		t.Fatalf("expected false, got true")
	}

	got, err = parseBoolEnv("MISSING_BOOL_ENV", true)
	if err != nil || !got {
		t.Fatalf("expected fallback true, got %v (%v)", got, err)
	}

	t.Setenv("SCHEDULER_ENABLED", "sometimes")
	if _, err := parseBoolEnv("SCHEDULER_ENABLED", true); err == nil {
		t.Fatalf("expected error for invalid boolean")
	}
}

// TestParseFloatEnv проверяет разбор дробных значений.
func TestParseFloatEnv(t *testing.T) {
	t.Setenv("SENTRY_SAMPLE_RATE", "0.25")

	got, err := parseFloatEnv("SENTRY_SAMPLE_RATE", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}

	t.Setenv("SENTRY_SAMPLE_RATE", "quarter")
	if _, err := parseFloatEnv("SENTRY_SAMPLE_RATE", 1); err == nil {
		t.Fatalf("expected error for invalid number")
	}
}

// TestLoadFromEnvFile проверяет загрузку из файла и значения по умолчанию.
func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := strings.Join([]string{
		"JWT_SECRET=secret",
		"SCHEDULER_WORKERS=2",
		"SCHEDULER_RUN_ON_START=true",
		"ANALYTICS_POLICY_FILE=/etc/advisor/policy.yaml",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	// godotenv не перезаписывает уже заданные переменные.
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("SCHEDULER_WORKERS", "")
	os.Unsetenv("SCHEDULER_WORKERS")
	t.Setenv("SCHEDULER_RUN_ON_START", "")
	os.Unsetenv("SCHEDULER_RUN_ON_START")
	t.Setenv("ANALYTICS_POLICY_FILE", "")
	os.Unsetenv("ANALYTICS_POLICY_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Auth.JWTSecret != "secret" {
		t.Fatalf("expected secret from env file, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Scheduler.Workers != 2 || !cfg.Scheduler.RunOnStart {
		t.Fatalf("unexpected scheduler config %+v", cfg.Scheduler)
	}
	if cfg.Analytics.PolicyFile != "/etc/advisor/policy.yaml" {
		t.Fatalf("unexpected policy file %q", cfg.Analytics.PolicyFile)
	}
}

// TestValidate проверяет ограничения на связку настроек.
func TestValidate(t *testing.T) {
	valid := Config{
		Server:    ServerConfig{Port: 8080},
		Database:  DatabaseConfig{Host: "localhost", User: "advisor", Name: "practice_advisor", MaxOpenConns: 10, MaxIdleConns: 5},
		Auth:      AuthConfig{JWTSecret: "secret", RateLimitPerMinute: 12, RateLimitBurst: 3},
		Scheduler: SchedulerConfig{Enabled: true, Spec: "0 30 2 * * *", Workers: 4, Timeout: time.Minute},
		Sentry:    SentryConfig{SampleRate: 1},
	}
	if err := valid.validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }},
		{name: "missing spec", mutate: func(c *Config) { c.Scheduler.Spec = "" }},
		{name: "too many workers", mutate: func(c *Config) { c.Scheduler.Workers = 20 }},
		{name: "zero sample rate", mutate: func(c *Config) { c.Sentry.SampleRate = 0 }},
		{name: "idle above open", mutate: func(c *Config) { c.Database.MaxIdleConns = 11 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

// TestDSN проверяет экранирование пароля в строке подключения.
func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "advisor", Password: "p@ss", Name: "practice_advisor", SSLMode: "disable"}

	want := "postgres://advisor:p%40ss@db:5432/practice_advisor?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
