package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// StoreBaseURL is the record store API root. StoreBaseID and
	// StoreAPIKey address and authorize one base.
	StoreBaseURL string
	StoreBaseID  string
	StoreAPIKey  string

	// VTBaseURL is the scanner API root. VTAPIKey may also arrive from the
	// SystemConfig collection at startup; see ApplyOverrides.
	VTBaseURL string
	VTAPIKey  string

	// VTPollInterval is the delay between analysis polls (default 5s).
	// VTMaxPollAttempts bounds the poll loop (default 20).
	VTPollInterval    time.Duration
	VTMaxPollAttempts int

	// VTCacheMaxAge is how fresh a cached report must be to skip a
	// resubmission (default 24h).
	VTCacheMaxAge time.Duration

	// ScanInterval is the pacing delay between URL scans within a tick, so
	// sequential scans stay under the scanner's rate limits (default 15s).
	ScanInterval time.Duration

	// DefaultCooldownHours applies when an account has no re-notification
	// cooldown of its own (default 6).
	DefaultCooldownHours int

	// SMTP settings for email alerts. Email delivery is skipped when
	// SMTPUser or SMTPPass is empty.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	// TelegramBotToken enables chat alerts when set.
	TelegramBotToken string

	JWTSecret string

	// JWTExpireHours is the token lifetime in hours (default 24).
	JWTExpireHours int

	// Env is "dev" (default) or "prod".
	Env string

	// VendorWeightsFile optionally overrides the built-in vendor weight
	// table (YAML).
	VendorWeightsFile string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string

	// CORSAllowedOrigins is a list of origins allowed for CORS
	// (comma-separated in CORS_ALLOWED_ORIGINS). When empty, no CORS
	// headers are sent (same-origin only).
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		StoreBaseURL: getEnv("STORE_BASE_URL", "https://api.airtable.com/v0"),
		StoreBaseID:  getEnv("STORE_BASE_ID", ""),
		StoreAPIKey:  getEnv("STORE_API_KEY", ""),

		VTBaseURL: getEnv("VT_BASE_URL", "https://www.virustotal.com/api/v3"),
		VTAPIKey:  getEnv("VT_API_KEY", ""),

		VTPollInterval:    getEnvDuration("VT_POLL_INTERVAL", 5*time.Second),
		VTMaxPollAttempts: getEnvInt("VT_MAX_POLL_ATTEMPTS", 20),
		VTCacheMaxAge:     getEnvDuration("VT_CACHE_MAX_AGE", 24*time.Hour),

		ScanInterval: getEnvDuration("SCAN_INTERVAL", 15*time.Second),

		DefaultCooldownHours: getEnvInt("DEFAULT_COOLDOWN_HOURS", 6),

		SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		Env:            getEnv("ENV", "dev"),

		VendorWeightsFile: getEnv("VENDOR_WEIGHTS_FILE", ""),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// ValidateOrchestrator reports whether the scheduling loop can start.
// When it fails, the API still serves health but the loop must not run.
func (c Config) ValidateOrchestrator() error {
	var missing []string
	if c.StoreBaseID == "" {
		missing = append(missing, "STORE_BASE_ID")
	}
	if c.StoreAPIKey == "" {
		missing = append(missing, "STORE_API_KEY")
	}
	if c.VTAPIKey == "" {
		missing = append(missing, "VT_API_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required config: " + strings.Join(missing, ", "))
	}
	return nil
}

// ApplyOverrides merges values loaded from the SystemConfig collection over
// the environment config. Known keys: virustotal_api_key, gmail_user,
// gmail_app_password, telegram_bot_token. Placeholder values containing
// "YOUR_" are ignored. Returns the merged copy; the receiver is unchanged.
func (c Config) ApplyOverrides(kv map[string]string) Config {
	if v := kv["virustotal_api_key"]; v != "" && !strings.Contains(v, "YOUR_") {
		c.VTAPIKey = v
	}
	if v := kv["gmail_user"]; v != "" && !strings.Contains(v, "YOUR_") {
		c.SMTPUser = v
	}
	if v := kv["gmail_app_password"]; v != "" {
		c.SMTPPass = v
	}
	if v := kv["telegram_bot_token"]; v != "" && !strings.Contains(v, "YOUR_") {
		c.TelegramBotToken = v
	}
	return c
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces.
// Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
