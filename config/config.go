package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment  string           `mapstructure:"environment"`
	Products     []string         `mapstructure:"products"`
	Retailers    []string         `mapstructure:"retailers"`
	ResultLimit  int              `mapstructure:"result_limit"`
	Workers      int              `mapstructure:"workers"`
	ProductDelay time.Duration    `mapstructure:"product_delay"`
	Schedule     string           `mapstructure:"schedule"`
	SessionDir   string           `mapstructure:"session_dir"`
	OutputDir    string           `mapstructure:"output_dir"`
	DatabaseURL  string           `mapstructure:"database_url"`
	Location     LocationConfig   `mapstructure:"location"`
	Browser      BrowserConfig    `mapstructure:"browser"`
	Politeness   PolitenessConfig `mapstructure:"politeness"`
	Polling      PollingConfig    `mapstructure:"polling"`
	Retry        RetryConfig      `mapstructure:"retry"`
}

// LocationConfig pins searches to one store
type LocationConfig struct {
	PostalCode string `mapstructure:"postal_code"`
	StoreID    string `mapstructure:"store_id"`
}

// BrowserConfig holds Chromium settings
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	Bin             string        `mapstructure:"bin"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
}

// PolitenessConfig spaces out requests to one retailer
type PolitenessConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
}

// PollingConfig bounds the wait for embedded data
type PollingConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BlockedMin  time.Duration `mapstructure:"blocked_min"`
	BlockedMax  time.Duration `mapstructure:"blocked_max"`
	IdleMin     time.Duration `mapstructure:"idle_min"`
	IdleMax     time.Duration `mapstructure:"idle_max"`
}

// RetryConfig bounds caller-level retries of transient failures
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// Load reads configuration from defaults, an optional smartcart.yaml and
// SMARTCART_* environment variables, in increasing precedence. configFile
// overrides the search path when set.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("smartcart")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.smartcart")
	}

	v.SetEnvPrefix("SMARTCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database_url", "SMARTCART_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("products", []string{"Orange Juice", "Toilet Paper", "Lemons"})
	v.SetDefault("retailers", []string{})
	v.SetDefault("result_limit", 10)
	v.SetDefault("workers", 3)
	v.SetDefault("product_delay", "2s")
	v.SetDefault("schedule", "0 0 */12 * * *")
	v.SetDefault("session_dir", ".sessions")
	v.SetDefault("output_dir", ".")
	v.SetDefault("database_url", "")

	// Cole Harbour, NS
	v.SetDefault("location.postal_code", "B2V2J5")
	v.SetDefault("location.store_id", "1176")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.navigate_timeout", "45s")

	v.SetDefault("politeness.min_interval", "45s")
	v.SetDefault("politeness.max_jitter", "5s")

	v.SetDefault("polling.max_attempts", 120)
	v.SetDefault("polling.blocked_min", "1500ms")
	v.SetDefault("polling.blocked_max", "3s")
	v.SetDefault("polling.idle_min", "500ms")
	v.SetDefault("polling.idle_max", "1500ms")

	v.SetDefault("retry.attempts", 2)
	v.SetDefault("retry.delay", "1m")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Environment != "development" && config.Environment != "production" {
		return fmt.Errorf("environment must be 'development' or 'production', got: %s", config.Environment)
	}

	products := config.Products[:0]
	for _, p := range config.Products {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	config.Products = products
	if len(config.Products) == 0 {
		return fmt.Errorf("at least one product is required (set SMARTCART_PRODUCTS)")
	}

	if config.ResultLimit <= 0 {
		return fmt.Errorf("result_limit must be positive, got: %d", config.ResultLimit)
	}
	if config.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got: %d", config.Workers)
	}
	if config.Politeness.MinInterval < 0 || config.Politeness.MaxJitter < 0 {
		return fmt.Errorf("politeness durations must not be negative")
	}
	if config.Polling.MaxAttempts <= 0 {
		return fmt.Errorf("polling.max_attempts must be positive, got: %d", config.Polling.MaxAttempts)
	}
	if config.Polling.BlockedMax < config.Polling.BlockedMin || config.Polling.IdleMax < config.Polling.IdleMin {
		return fmt.Errorf("polling delay ranges must have max >= min")
	}
	if config.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got: %d", config.Retry.Attempts)
	}

	return nil
}
