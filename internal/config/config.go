package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port         string
	AllowOrigins string
	TZDefault    string

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	AuthJWTSecret string
	AuthIssuer    string

	OpenAIKey         string
	OpenAIBaseURL     string
	OpenAIVisionModel string

	ResendKey        string
	ResendBaseURL    string
	EmailFrom        string
	BudgetAlertRatio float64

	ReqTimeoutSec  int
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadMB    int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func atof(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:         getenv("PORT", "8080"),
		AllowOrigins: getenv("ALLOW_ORIGINS", "*"),
		TZDefault:    getenv("TZ_DEFAULT", "Asia/Kolkata"),

		DBHost:         getenv("DB_HOST", "localhost"),
		DBPort:         getenv("DB_PORT", "5432"),
		DBUser:         getenv("DB_USER", "postgres"),
		DBPassword:     getenv("DB_PASSWORD", ""),
		DBName:         getenv("DB_NAME", "finance"),
		DBSSLMode:      getenv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: atoi("DB_MAX_OPEN_CONNS", 25),

		AuthJWTSecret: getenv("AUTH_JWT_SECRET", ""),
		AuthIssuer:    getenv("AUTH_ISSUER", ""),

		OpenAIKey:         getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIVisionModel: getenv("OPENAI_VISION_MODEL", "gpt-4o-mini"),

		ResendKey:        getenv("RESEND_API_KEY", ""),
		ResendBaseURL:    getenv("RESEND_BASE_URL", "https://api.resend.com"),
		EmailFrom:        getenv("EMAIL_FROM", "Finance App <onboarding@resend.dev>"),
		BudgetAlertRatio: atof("BUDGET_ALERT_RATIO", 0.8),

		ReqTimeoutSec:  atoi("REQUEST_TIMEOUT_SECONDS", 30),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 5),
		RateLimitBurst: atoi("RATE_LIMIT_BURST", 10),
		MaxUploadMB:    int64(atoi("MAX_UPLOAD_MB", 15)),
	}
}

// DSN is the postgres URL for gorm's postgres driver.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}
