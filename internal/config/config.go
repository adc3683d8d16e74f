package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultLockoutFailures = 4
)

// Config carries every externally supplied setting. It is built once at
// process start and handed to constructors; nothing reads the environment
// after Load returns.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	DBConnMaxIdleTime  time.Duration

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AdminSecret        string
	CronSecret         string

	LockoutMaxFailures   int
	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	ClientURL string
	BaseURL   string

	SentryDSN     string
	CloudinaryURL string

	StripeSecretKey string

	SenderName   string
	SenderEmail  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv: envOrDefault("APP_ENV", "development"),
		Port:   envOrDefault("PORT", "8080"),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),

		AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", int(defaultAccessTokenTTL.Minutes())),
		RefreshTokenTTL: envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", int(defaultRefreshTokenTTL.Hours())),
		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		CronSecret:      os.Getenv("CRON_SECRET"),

		LockoutMaxFailures:   envIntOrDefault("LOCKOUT_MAX_FAILURES", defaultLockoutFailures),
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		ClientURL: envOrDefault("CLIENT_URL", "http://localhost:5173"),
		BaseURL:   envOrDefault("BASE_URL", "http://localhost:8080"),

		SentryDSN:     os.Getenv("SENTRY_DSN"),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		SenderName:   envOrDefault("SENDER_NAME", "Convenience Ecom"),
		SenderEmail:  os.Getenv("SENDER_EMAIL"),
		SMTPHost:     envOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     envIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
	}

	var err error
	if cfg.DatabaseURL, err = mustEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.AccessTokenSecret, err = mustEnv("ACCESS_TOKEN_SECRET"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenSecret, err = mustEnv("REFRESH_TOKEN_SECRET"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}
