package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Browser   BrowserConfig
	Extractor ExtractorConfig
	Retry     RetryConfig
	Pace      PaceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Relay     RelayConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LedgerConfig points at the per-segment workbook files. Each workbook
// carries one tab per country.
type LedgerConfig struct {
	NewSellerPath      string
	ExistingSellerPath string
	VendorPath         string
	UploadDir          string
}

type BrowserConfig struct {
	CDPURL      string
	ExtensionID string
	Headless    bool
	Timeout     time.Duration
}

type ExtractorConfig struct {
	SettleDelay     time.Duration
	CloseTabsFirst  bool
	CloseOtherTabs  bool
	CompetitorMonth int
}

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// PaceConfig bounds the jittered delay between products.
type PaceConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Ledger: LedgerConfig{
			NewSellerPath:      getEnvOrDefault("LEDGER_NEW_SELLER_PATH", "ledgers/new_seller.xlsx"),
			ExistingSellerPath: getEnvOrDefault("LEDGER_EXISTING_SELLER_PATH", "ledgers/existing_seller.xlsx"),
			VendorPath:         getEnvOrDefault("LEDGER_VENDOR_PATH", "ledgers/vendor.xlsx"),
			UploadDir:          getEnvOrDefault("LEDGER_UPLOAD_DIR", os.TempDir()),
		},
		Browser: BrowserConfig{
			CDPURL:      getEnvOrDefault("BROWSER_CDP_URL", "http://127.0.0.1:9222"),
			ExtensionID: getEnvOrDefault("BROWSER_EXTENSION_ID", ""),
			Headless:    getBoolOrDefault("BROWSER_HEADLESS", false),
			Timeout:     getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
		},
		Extractor: ExtractorConfig{
			SettleDelay:     getDurationOrDefault("EXTRACTOR_SETTLE_DELAY", 30*time.Second),
			CloseTabsFirst:  getBoolOrDefault("EXTRACTOR_CLOSE_TABS_FIRST", true),
			CloseOtherTabs:  getBoolOrDefault("EXTRACTOR_CLOSE_OTHER_TABS", true),
			CompetitorMonth: getIntOrDefault("EXTRACTOR_COMPETITOR_MONTH", 0),
		},
		Retry: RetryConfig{
			MaxAttempts: getIntOrDefault("RETRY_MAX_ATTEMPTS", 8),
			Delay:       getDurationOrDefault("RETRY_DELAY", 20*time.Second),
		},
		Pace: PaceConfig{
			MinDelay: getDurationOrDefault("PACE_MIN_DELAY", 2*time.Second),
			MaxDelay: getDurationOrDefault("PACE_MAX_DELAY", 8*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "xray_ledger"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Relay: RelayConfig{
			PollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getIntOrDefault("RELAY_BATCH_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if c.Ledger.NewSellerPath == "" || c.Ledger.ExistingSellerPath == "" || c.Ledger.VendorPath == "" {
		return fmt.Errorf("all three ledger workbook paths must be set")
	}

	if c.Pace.MinDelay > c.Pace.MaxDelay {
		return fmt.Errorf("PACE_MIN_DELAY cannot be greater than PACE_MAX_DELAY")
	}

	if m := c.Extractor.CompetitorMonth; m < 0 || m > 12 {
		return fmt.Errorf("EXTRACTOR_COMPETITOR_MONTH must be between 0 and 12")
	}

	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}

	return nil
}

// CompetitorMonthOrNow resolves the configured month, 0 meaning the
// current wall-clock month.
func (c *Config) CompetitorMonthOrNow(now time.Time) int {
	if c.Extractor.CompetitorMonth != 0 {
		return c.Extractor.CompetitorMonth
	}
	return int(now.Month())
}

// An explicitly empty value counts as set, so BROWSER_CDP_URL="" can
// select the launch path over the CDP default.
func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
