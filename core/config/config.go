package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	Paths     PathsConfig
	Database  DatabaseConfig
	Messaging MessagingConfig
	Webhook   WebhookConfig
	Campaign  CampaignConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	Statics  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// MessagingConfig tunes the session state machine and identifier handling.
// MaxPhoneDigits and InternalIDPrefixes are heuristics over the external
// network's identifier format; revisit them if that format changes.
type MessagingConfig struct {
	StorageDir         string
	TypeUser           string
	TypeGroup          string
	QRWindow           time.Duration
	QRMaxAttempts      int
	ReconnectDelay     time.Duration
	MaxPhoneDigits     int
	InternalIDPrefixes []string
	DefaultCountryCode string
	ContactCacheTTL    time.Duration
	AutomationDelay    time.Duration
	SendRatePerMinute  int
	MaxImageSize       int64
	MaxMediaSize       int64
}

type WebhookConfig struct {
	Timeout time.Duration
}

type CampaignConfig struct {
	JitterMin time.Duration
	JitterMax time.Duration
}

// Global provides access to the loaded configuration.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	storages := getEnv("PATH_STORAGES", "storages")

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.4.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", filepath.Join(storages, "engine.db")),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "waengine:"),
	}

	internalPrefixes := []string{"120363"}
	if v := os.Getenv("MSG_INTERNAL_ID_PREFIXES"); v != "" {
		internalPrefixes = strings.Split(v, ",")
	}

	msgCfg := MessagingConfig{
		StorageDir:         storages,
		TypeUser:           "@s.whatsapp.net",
		TypeGroup:          "@g.us",
		QRWindow:           getEnvDuration("MSG_QR_WINDOW", 3*time.Minute),
		QRMaxAttempts:      getEnvInt("MSG_QR_MAX_ATTEMPTS", 3),
		ReconnectDelay:     getEnvDuration("MSG_RECONNECT_DELAY", 5*time.Second),
		MaxPhoneDigits:     getEnvInt("MSG_MAX_PHONE_DIGITS", 15),
		InternalIDPrefixes: internalPrefixes,
		DefaultCountryCode: getEnv("MSG_DEFAULT_COUNTRY_CODE", "20"),
		ContactCacheTTL:    getEnvDuration("MSG_CONTACT_CACHE_TTL", 30*time.Minute),
		AutomationDelay:    getEnvDuration("MSG_AUTOMATION_DELAY", 2*time.Second),
		SendRatePerMinute:  getEnvInt("MSG_SEND_RATE_PER_MINUTE", 30),
		MaxImageSize:       getEnvInt64("MSG_MAX_IMAGE_SIZE", 5*1024*1024),
		MaxMediaSize:       getEnvInt64("MSG_MAX_MEDIA_SIZE", 50*1024*1024),
	}

	webhookCfg := WebhookConfig{
		Timeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}

	campaignCfg := CampaignConfig{
		JitterMin: getEnvDuration("CAMPAIGN_JITTER_MIN", 2*time.Second),
		JitterMax: getEnvDuration("CAMPAIGN_JITTER_MAX", 5*time.Second),
	}

	cfg := &Config{
		App:       appCfg,
		Paths:     PathsConfig{Statics: getEnv("PATH_STATICS", "statics"), Storages: storages},
		Database:  dbCfg,
		Messaging: msgCfg,
		Webhook:   webhookCfg,
		Campaign:  campaignCfg,
	}

	Global = cfg
	return cfg, nil
}

// Default returns a Config with all defaults applied, ignoring the environment.
// Used by tests that need an isolated configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.App = AppConfig{Port: "3000", Environment: "test"}
	cfg.Paths = PathsConfig{Statics: "statics", Storages: "storages"}
	cfg.Database = DatabaseConfig{Driver: "sqlite", Name: "storages/engine.db"}
	cfg.Messaging = MessagingConfig{
		StorageDir:         "storages",
		TypeUser:           "@s.whatsapp.net",
		TypeGroup:          "@g.us",
		QRWindow:           3 * time.Minute,
		QRMaxAttempts:      3,
		ReconnectDelay:     5 * time.Second,
		MaxPhoneDigits:     15,
		InternalIDPrefixes: []string{"120363"},
		DefaultCountryCode: "20",
		ContactCacheTTL:    30 * time.Minute,
		AutomationDelay:    2 * time.Second,
		SendRatePerMinute:  30,
		MaxImageSize:       5 * 1024 * 1024,
		MaxMediaSize:       50 * 1024 * 1024,
	}
	cfg.Webhook = WebhookConfig{Timeout: 10 * time.Second}
	cfg.Campaign = CampaignConfig{JitterMin: 2 * time.Second, JitterMax: 5 * time.Second}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
