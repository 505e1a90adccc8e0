package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the agent's runtime configuration, loaded from the environment
// with an optional .env bootstrap.
type Config struct {
	LogLevel string

	// Watched application
	BundleID     string
	AppName      string
	TitleMarker  string
	PollInterval time.Duration
	HelperPath   string

	// Lookup utilities and endpoints
	WhoisCommand string
	DigCommand   string
	GeoBaseURL   string

	// Classification
	LLMEndpoint string
	Model       string
	MaxTokens   int
	APIKey      string

	// Persistence and transports (all optional)
	PostgresDSN   string
	MasterKeyHex  string
	ClickHouseDSN string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string

	// Admin endpoint ("" disables it)
	AdminAddr string

	// Extraction/prompt rules file ("" uses built-ins)
	RulesPath string
}

// Load reads configuration. A .env file next to the binary is honored when
// present; real environment variables win either way.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; missing file is fine

	cfg := &Config{
		LogLevel: envOrDefault("WARDEN_LOG_LEVEL", "info"),

		BundleID:    envOrDefault("WARDEN_BUNDLE_ID", "com.objective-see.lulu.app"),
		AppName:     envOrDefault("WARDEN_APP_NAME", "LuLu"),
		TitleMarker: envOrDefault("WARDEN_TITLE_MARKER", "Alert"),
		HelperPath:  os.Getenv("WARDEN_AX_HELPER"),

		WhoisCommand: envOrDefault("WARDEN_WHOIS_CMD", "whois"),
		DigCommand:   envOrDefault("WARDEN_DIG_CMD", "dig"),
		GeoBaseURL:   envOrDefault("WARDEN_GEO_URL", "http://ip-api.com/json"),

		LLMEndpoint: os.Getenv("WARDEN_LLM_ENDPOINT"),
		Model:       os.Getenv("WARDEN_MODEL"),
		MaxTokens:   envOrDefaultInt("WARDEN_MAX_TOKENS", 1024),
		APIKey:      os.Getenv("ANTHROPIC_API_KEY"),

		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		MasterKeyHex:  os.Getenv("WARDEN_MASTER_KEY"),
		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		RedisAddr:     os.Getenv("WARDEN_REDIS_ADDR"),
		RedisPassword: os.Getenv("WARDEN_REDIS_PASSWORD"),
		RedisDB:       envOrDefaultInt("WARDEN_REDIS_DB", 0),
		NATSURL:       os.Getenv("WARDEN_NATS_URL"),

		AdminAddr: envOrDefault("WARDEN_ADMIN_ADDR", ":9120"),
		RulesPath: os.Getenv("WARDEN_RULES_FILE"),
	}

	interval, err := time.ParseDuration(envOrDefault("WARDEN_POLL_INTERVAL", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid WARDEN_POLL_INTERVAL: %w", err)
	}
	cfg.PollInterval = interval

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and cross-field constraints.
func (c *Config) Validate() error {
	if c.HelperPath == "" {
		return fmt.Errorf("WARDEN_AX_HELPER is required")
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("WARDEN_POLL_INTERVAL must be at least 100ms")
	}
	if c.PostgresDSN != "" && c.MasterKeyHex == "" {
		return fmt.Errorf("WARDEN_MASTER_KEY is required when POSTGRES_DSN is set")
	}
	if c.MasterKeyHex != "" {
		if _, err := c.MasterKey(); err != nil {
			return err
		}
	}
	return nil
}

// MasterKey decodes the hex-encoded 32-byte credential sealing key.
func (c *Config) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("WARDEN_MASTER_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("WARDEN_MASTER_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
