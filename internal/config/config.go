package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Sentry    SentryConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// AuthConfig описывает проверку токенов портала и лимит ручных запусков анализа.
type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute int
	RateLimitBurst     int
}

type SchedulerConfig struct {
	Enabled    bool
	Spec       string
	Workers    int
	RunOnStart bool
	Timeout    time.Duration
}

type SentryConfig struct {
	DSN         string
	Environment string
	SampleRate  float64
}

type AnalyticsConfig struct {
	PolicyFile string
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "advisor"),
		Password:        getEnv("DB_PASSWORD", "advisor"),
		Name:            getEnv("DB_NAME", "practice_advisor"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	rateLimitPerMinute, err := parseIntEnv("ANALYSIS_RATE_LIMIT_PER_MINUTE", 12)
	if err != nil {
		return cfg, err
	}

	rateLimitBurst, err := parseIntEnv("ANALYSIS_RATE_LIMIT_BURST", 3)
	if err != nil {
		return cfg, err
	}

	cfg.Auth = AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "practice-portal"),
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
	}

	schedulerEnabled, err := parseBoolEnv("SCHEDULER_ENABLED", true)
	if err != nil {
		return cfg, err
	}

	runOnStart, err := parseBoolEnv("SCHEDULER_RUN_ON_START", false)
	if err != nil {
		return cfg, err
	}

	workers, err := parseIntEnv("SCHEDULER_WORKERS", 4)
	if err != nil {
		return cfg, err
	}

	schedulerTimeout, err := parseDurationEnv("SCHEDULER_TIMEOUT", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:    schedulerEnabled,
		Spec:       strings.TrimSpace(getEnv("SCHEDULER_SPEC", "0 30 2 * * *")),
		Workers:    workers,
		RunOnStart: runOnStart,
		Timeout:    schedulerTimeout,
	}

	sampleRate, err := parseFloatEnv("SENTRY_SAMPLE_RATE", 1.0)
	if err != nil {
		return cfg, err
	}

	cfg.Sentry = SentryConfig{
		DSN:         getEnv("SENTRY_DSN", ""),
		Environment: getEnv("SENTRY_ENVIRONMENT", cfg.Env),
		SampleRate:  sampleRate,
	}

	cfg.Analytics = AnalyticsConfig{
		PolicyFile: getEnv("ANALYTICS_POLICY_FILE", ""),
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.RateLimitPerMinute <= 0 {
		return fmt.Errorf("ANALYSIS_RATE_LIMIT_PER_MINUTE must be greater than 0")
	}

	if c.Auth.RateLimitBurst <= 0 {
		return fmt.Errorf("ANALYSIS_RATE_LIMIT_BURST must be greater than 0")
	}

	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("SCHEDULER_SPEC is required when the scheduler is enabled")
	}

	if c.Scheduler.Workers > c.Database.MaxOpenConns {
		return fmt.Errorf("SCHEDULER_WORKERS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Sentry.SampleRate <= 0 || c.Sentry.SampleRate > 1 {
		return fmt.Errorf("SENTRY_SAMPLE_RATE must be in (0, 1]")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
