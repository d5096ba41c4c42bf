package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	// HTTP Server
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`

	// Storage
	DataBackend  string `toml:"data_backend"`
	SQLiteDBPath string `toml:"sqlite_db_path"`

	// Auth
	JWTSecret string        `toml:"jwt_secret"`
	TokenTTL  time.Duration `toml:"token_ttl"`

	// Dashboard stats cache
	CacheBackend  string        `toml:"cache_backend"`
	RedisURL      string        `toml:"redis_url"`
	StatsCacheTTL time.Duration `toml:"stats_cache_ttl"`

	// AMQP
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Payment gateways
	EsewaProductCode  string `toml:"esewa_product_code"`
	EsewaSecretKey    string `toml:"esewa_secret_key"`
	EsewaFormURL      string `toml:"esewa_form_url"`
	KhaltiSecretKey   string `toml:"khalti_secret_key"`
	KhaltiBaseURL     string `toml:"khalti_base_url"`
	PaymentReturnURL  string `toml:"payment_return_url"`
	PaymentWebsiteURL string `toml:"payment_website_url"`

	// Google Sheets ledger
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleLedgerSheet        string `toml:"google_ledger_sheet"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`
	GoogleServiceAccountJSON string `toml:"google_service_account_json"`

	// Worker
	SyncInterval     time.Duration `toml:"sync_interval"`
	ReminderInterval time.Duration `toml:"reminder_interval"`
}

// Defaults returns the built-in configuration before any file or
// environment overrides.
func Defaults() *Config {
	return &Config{
		Port:     "8081",
		LogLevel: "info",

		DataBackend:  BackendMemory,
		SQLiteDBPath: "./data/freelance.db",

		TokenTTL: 24 * time.Hour,

		CacheBackend:  BackendMemory,
		StatsCacheTTL: 30 * time.Second,

		AMQPExchange: "freelance",
		AMQPQueue:    "invoice_events",

		EsewaProductCode:  "EPAYTEST",
		EsewaFormURL:      "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		KhaltiBaseURL:     "https://dev.khalti.com/api/v2",
		PaymentReturnURL:  "http://localhost:8081/payments/return",
		PaymentWebsiteURL: "http://localhost:8081",

		GoogleLedgerSheet: "Invoices",

		SyncInterval:     30 * time.Second,
		ReminderInterval: time.Hour,
	}
}

// Load builds the configuration: defaults, then the TOML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the values present in a TOML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// CreateConfigFile writes the example configuration to path. It refuses to
// overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenTTL = getEnvDuration("TOKEN_TTL", c.TokenTTL)

	c.CacheBackend = getEnv("CACHE_BACKEND", c.CacheBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.StatsCacheTTL = getEnvDuration("STATS_CACHE_TTL", c.StatsCacheTTL)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.EsewaProductCode = getEnv("ESEWA_PRODUCT_CODE", c.EsewaProductCode)
	c.EsewaSecretKey = getEnv("ESEWA_SECRET_KEY", c.EsewaSecretKey)
	c.EsewaFormURL = getEnv("ESEWA_FORM_URL", c.EsewaFormURL)
	c.KhaltiSecretKey = getEnv("KHALTI_SECRET_KEY", c.KhaltiSecretKey)
	c.KhaltiBaseURL = getEnv("KHALTI_BASE_URL", c.KhaltiBaseURL)
	c.PaymentReturnURL = getEnv("PAYMENT_RETURN_URL", c.PaymentReturnURL)
	c.PaymentWebsiteURL = getEnv("PAYMENT_WEBSITE_URL", c.PaymentWebsiteURL)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleLedgerSheet = getEnv("GOOGLE_LEDGER_SHEET", c.GoogleLedgerSheet)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)

	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)
	c.ReminderInterval = getEnvDuration("REMINDER_INTERVAL", c.ReminderInterval)
}

// LedgerEnabled reports whether invoice export to Google Sheets is configured.
func (c *Config) LedgerEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT secret must be at least 32 characters")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	validCaches := []string{BackendMemory, BackendRedis}
	if !slices.Contains(validCaches, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCaches))
	}
	if c.CacheBackend == BackendRedis {
		if c.RedisURL == "" {
			errors = append(errors, "Redis URL is required when using redis cache backend")
		} else if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': scheme must be 'redis' or 'rediss'", c.RedisURL))
		}
	}
	if c.StatsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must not be negative", c.StatsCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for _, entry := range []struct{ name, raw string }{
		{"eSewa form URL", c.EsewaFormURL},
		{"Khalti base URL", c.KhaltiBaseURL},
		{"payment return URL", c.PaymentReturnURL},
		{"payment website URL", c.PaymentWebsiteURL},
	} {
		name, raw := entry.name, entry.raw
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute URL", name, raw))
		}
	}
	if c.EsewaSecretKey != "" && c.EsewaProductCode == "" {
		errors = append(errors, "eSewa product code is required when an eSewa secret key is set")
	}

	if c.LedgerEnabled() {
		if c.GoogleLedgerSheet == "" {
			errors = append(errors, "Google ledger sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the ledger")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SyncInterval < time.Second || c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be between 1 second and 24 hours", c.SyncInterval))
	}
	if c.ReminderInterval < time.Minute || c.ReminderInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be between 1 minute and 7 days", c.ReminderInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
