package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Checkout CheckoutConfig
	Metrics  MetricsConfig
}

// ServerConfig holds the local view server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// APIConfig holds the remote shop API configuration.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables pacing
	RateBurst int
}

// DatabaseConfig holds the cart snapshot database configuration.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	CartID          string
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// CheckoutConfig holds pricing constants and checkout pacing.
type CheckoutConfig struct {
	TaxRate               float64
	FreeShippingThreshold float64
	FlatShippingFee       float64
	ConfirmationDelay     time.Duration
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "127.0.0.1"),
			Port: getEnvAsInt("SERVER_PORT", 3000),
		},
		API: APIConfig{
			BaseURL:   getEnv("API_BASE_URL", "http://localhost:5000"),
			Timeout:   getEnvAsDuration("API_TIMEOUT", 15*time.Second),
			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 10),
			RateBurst: getEnvAsInt("API_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 4),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 1),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			CartID:          getEnv("CART_ID", "local"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Checkout: CheckoutConfig{
			TaxRate:               getEnvAsFloat("TAX_RATE", 0.08),
			FreeShippingThreshold: getEnvAsFloat("FREE_SHIPPING_THRESHOLD", 100),
			FlatShippingFee:       getEnvAsFloat("FLAT_SHIPPING_FEE", 15),
			ConfirmationDelay:     getEnvAsDuration("CONFIRMATION_DELAY", 2*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("API rate limit cannot be negative")
	}

	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return fmt.Errorf("API rate burst must be at least 1")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}

		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}

		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}

		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}

		if c.Database.MaxConnections < 1 {
			return fmt.Errorf("database max connections must be at least 1")
		}

		if c.Database.MinConnections < 1 {
			return fmt.Errorf("database min connections must be at least 1")
		}

		if c.Database.MinConnections > c.Database.MaxConnections {
			return fmt.Errorf("database min connections cannot exceed max connections")
		}

		if c.Database.CartID == "" {
			return fmt.Errorf("cart ID is required when the database is enabled")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Checkout.TaxRate < 0 || c.Checkout.TaxRate >= 1 {
		return fmt.Errorf("invalid tax rate: %v (must be in [0, 1))", c.Checkout.TaxRate)
	}

	if c.Checkout.FreeShippingThreshold < 0 || c.Checkout.FlatShippingFee < 0 {
		return fmt.Errorf("shipping threshold and fee cannot be negative")
	}

	if c.Checkout.ConfirmationDelay < 0 {
		return fmt.Errorf("confirmation delay cannot be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration ("2s", "500ms").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
