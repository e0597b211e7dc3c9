package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string

	// AdminUser/AdminPassword seed the bootstrap government user on
	// first startup. The bootstrap user gets role GOVT.
	AdminUser     string
	AdminPassword string

	// MLServiceURL is the base URL of the external forecasting service.
	MLServiceURL string
	// MLTimeout bounds every call to the forecasting service; a call
	// that exceeds it is reported as 504 to the API client.
	MLTimeout time.Duration

	// SiteDataDir holds the per-site sample CSV files served by
	// /v1/sites/{id}/data. Empty disables the endpoint.
	SiteDataDir string

	// SMTP settings for the alert notifier. If SMTPHost is empty the
	// worker logs rendered alerts instead of sending them.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// AlertCooldown is the per-region window during which a second
	// alert for the same region is rejected.
	AlertCooldown time.Duration
	// AlertMaxAttempts is the redelivery budget per queued alert job
	// before it is parked on the dead-letter list.
	AlertMaxAttempts int
	// AlertWorkers is the number of concurrent queue consumers.
	AlertWorkers int

	// UsageRetentionDays is how long usage log rows are kept before the
	// pruning worker removes them. 0 disables pruning.
	UsageRetentionDays int

	// DepartmentEmails maps department names to recipient addresses.
	DepartmentEmails map[string]string

	// SessionTTL is the lifetime of a login session.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		ListenAddr:    getenv("AQ_LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("AQ_DATABASE_URL"),
		RedisAddr:     getenv("AQ_REDIS_ADDR", "localhost:6379"),
		AdminUser:     getenv("AQ_ADMIN_USER", "admin"),
		AdminPassword: getenv("AQ_ADMIN_PASSWORD", "changeme"),

		MLServiceURL: getenv("AQ_ML_SERVICE_URL", "http://localhost:8000"),
		MLTimeout:    time.Duration(intenv("AQ_ML_TIMEOUT_SECONDS", 30)) * time.Second,

		SiteDataDir: os.Getenv("AQ_SITE_DATA_DIR"),

		SMTPHost: os.Getenv("AQ_SMTP_HOST"),
		SMTPPort: intenv("AQ_SMTP_PORT", 587),
		SMTPUser: os.Getenv("AQ_SMTP_USER"),
		SMTPPass: os.Getenv("AQ_SMTP_PASS"),
		SMTPFrom: getenv("AQ_SMTP_FROM", "Gov Command Center <alert@gov.example>"),

		AlertCooldown:    time.Duration(intenv("AQ_ALERT_COOLDOWN_MINUTES", 30)) * time.Minute,
		AlertMaxAttempts: intenv("AQ_ALERT_MAX_ATTEMPTS", 5),
		AlertWorkers:     intenv("AQ_ALERT_WORKERS", 2),

		UsageRetentionDays: intenv("AQ_USAGE_RETENTION_DAYS", 365),

		SessionTTL: time.Duration(intenv("AQ_SESSION_TTL_HOURS", 24)) * time.Hour,
	}

	cfg.DepartmentEmails = map[string]string{
		"Health Dept":        getenv("AQ_EMAIL_HEALTH", "health-dept@example.com"),
		"Traffic Police":     getenv("AQ_EMAIL_TRAFFIC", "traffic-police@example.com"),
		"Education Board":    getenv("AQ_EMAIL_EDUCATION", "education-board@example.com"),
		"Industrial Control": getenv("AQ_EMAIL_INDUSTRY", "industrial-control@example.com"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intenv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
