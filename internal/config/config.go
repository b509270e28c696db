// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// chat-platform client, key issuance, payment provider, link bypass relay,
// channel keepalive, HTTP server timeouts, logging, and rate limiting.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ChatConfig holds credentials and identifiers for the chat platform.
type ChatConfig struct {
	BotToken      string // NEXUS_TOKEN
	GuildID       string // GUILD_ID
	StaffRoleID   string // STAFF_ROLE_ID
	PremiumRoleID string // PREMIUM_ROLE_ID
	LogChannelID  string // LOG_CHANNEL_ID (audit messages; optional)
	APIBaseURL    string // CHAT_API_URL
}

// PaymentConfig holds payment-provider credentials and endpoints.
type PaymentConfig struct {
	ClientID     string // PAYPAL_CLIENT_ID
	ClientSecret string // PAYPAL_CLIENT_SECRET
	Mode         string // PAYPAL_MODE: live|sandbox
	WebhookID    string // PAYPAL_WEBHOOK_ID (inbound event verification)
	BrandName    string // PAYPAL_BRAND_NAME
	PublicURL    string // PUBLIC_URL for return/cancel links
}

// APIBase returns the provider REST base URL for the configured mode.
func (p PaymentConfig) APIBase() string {
	if p.Mode == "sandbox" {
		return "https://api-m.sandbox.paypal.com"
	}
	return "https://api-m.paypal.com"
}

// Configured reports whether checkout can be offered at all.
func (p PaymentConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// BypassConfig holds settings for the link bypass relay.
type BypassConfig struct {
	ChannelID string        // BYPASS_CHANNEL_ID (empty disables the flow)
	APIURL    string        // BYPASS_API_URL
	APIKey    string        // BYPASS_API_KEY
	Retention time.Duration // BYPASS_RETENTION: delay before cleanup of both messages
	Cooldown  time.Duration // BYPASS_COOLDOWN per channel:author
}

// AnalyticsConfig holds settings for the upstream key analytics API.
type AnalyticsConfig struct {
	APIURL string // ANALYTICS_API_URL (empty disables the overview command)
	APIKey string // ANALYTICS_API_KEY
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath      string // SQLite path (panels, audit trail, webhook dedup)
	CatalogPath string // optional JSON file mapping service -> endpoint URL

	// Key issuance
	SigningSecret   string        // HMAC_SECRET for outbound request tags
	KeyTier         string        // product tier label on issued keys
	KeyDuration     time.Duration // validity window stamped on issued keys
	CommandCooldown time.Duration // fixed-window cooldown per requester

	// Keepalive
	KeepaliveInterval time.Duration // KEEPALIVE_INTERVAL between channel sweeps

	// Outbound HTTP
	HTTPTimeout time.Duration // timeout for all outbound calls

	// Edge rate limiting (webhook receiver)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// CORS
	CORSAllowedOrigins []string

	// Collaborators
	Chat      ChatConfig
	Payment   PaymentConfig
	Bypass    BypassConfig
	Analytics AnalyticsConfig
	OTEL      OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:      getenv("DB_PATH", "keybot.db"),
		CatalogPath: getenv("CATALOG_PATH", ""),

		// Key issuance
		SigningSecret:   getenv("HMAC_SECRET", ""),
		KeyTier:         getenv("KEY_TIER", "Premium"),
		KeyDuration:     getdur("KEY_DURATION", 24*time.Hour),
		CommandCooldown: getdur("COMMAND_COOLDOWN", 5*time.Second),

		// Keepalive
		KeepaliveInterval: getdur("KEEPALIVE_INTERVAL", 12*time.Hour),

		// Outbound HTTP
		HTTPTimeout: getdur("HTTP_TIMEOUT", 10*time.Second),

		// Edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),

		Chat: ChatConfig{
			BotToken:      getenv("NEXUS_TOKEN", ""),
			GuildID:       getenv("GUILD_ID", ""),
			StaffRoleID:   getenv("STAFF_ROLE_ID", ""),
			PremiumRoleID: getenv("PREMIUM_ROLE_ID", ""),
			LogChannelID:  getenv("LOG_CHANNEL_ID", ""),
			APIBaseURL:    strings.TrimRight(getenv("CHAT_API_URL", "https://discord.com/api/v10"), "/"),
		},

		Payment: PaymentConfig{
			ClientID:     getenv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getenv("PAYPAL_CLIENT_SECRET", ""),
			Mode:         strings.ToLower(getenv("PAYPAL_MODE", "live")),
			WebhookID:    getenv("PAYPAL_WEBHOOK_ID", ""),
			BrandName:    getenv("PAYPAL_BRAND_NAME", "Nexus Softworks"),
			PublicURL:    strings.TrimRight(getenv("PUBLIC_URL", ""), "/"),
		},

		Bypass: BypassConfig{
			ChannelID: getenv("BYPASS_CHANNEL_ID", ""),
			APIURL:    getenv("BYPASS_API_URL", "https://api.bypass.vip/premium/bypass"),
			APIKey:    getenv("BYPASS_API_KEY", ""),
			Retention: getdur("BYPASS_RETENTION", 120*time.Second),
			Cooldown:  getdur("BYPASS_COOLDOWN", 5*time.Second),
		},

		Analytics: AnalyticsConfig{
			APIURL: strings.TrimRight(getenv("ANALYTICS_API_URL", ""), "/"),
			APIKey: getenv("ANALYTICS_API_KEY", ""),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-keybot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Payment.Mode {
	case "live", "sandbox":
	default:
		cfg.Payment.Mode = "live"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return cfg, errors.New("HMAC_SECRET must not be empty")
	}
	if strings.TrimSpace(cfg.Chat.BotToken) == "" {
		return cfg, errors.New("NEXUS_TOKEN must not be empty")
	}
	if cfg.KeyDuration <= 0 {
		return cfg, errors.New("KEY_DURATION must be > 0")
	}
	if cfg.CommandCooldown <= 0 {
		return cfg, errors.New("COMMAND_COOLDOWN must be > 0")
	}
	if cfg.KeepaliveInterval <= 0 {
		return cfg, errors.New("KEEPALIVE_INTERVAL must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return cfg, errors.New("HTTP_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Bypass.Retention < 0 || cfg.Bypass.Cooldown < 0 {
		return cfg, errors.New("bypass durations must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
