package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Inventory   InventoryConfig   `yaml:"inventory"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "pgx" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxOpenConns  int    `yaml:"max_open_conns"`
	MigrationsDir string `yaml:"migrations_dir"` // applied at startup when set
	RetryAttempts int    `yaml:"retry_attempts"` // on serialization failures and deadlocks

	// ReturnProcedures are tried in order for the atomic rental return. When
	// none exists in the database the return runs as an in-process transaction.
	ReturnProcedures []string `yaml:"return_procedures"`
}

// RedisConfig contains the idempotency cache connection. An empty address disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// TelemetryConfig contains OpenTelemetry exporter settings
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	URLPath     string `yaml:"url_path"`
	AuthHeader  string `yaml:"auth_header"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// InventoryConfig contains maintenance hold settings
type InventoryConfig struct {
	CompleteHoldHours int `yaml:"complete_hold_hours"`
	DamagedHoldHours  int `yaml:"damaged_hold_hours"`
}

// IdempotencyConfig contains replay settings for POST requests
type IdempotencyConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReleaseMaintenanceHolds string `yaml:"release_maintenance_holds"`
	ReportOverdueRentals    string `yaml:"report_overdue_rentals"`
}

// Load reads configuration from a YAML file. Variables from a .env file in
// the working directory are loaded first and never override the real environment.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML bytes, applying environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("MIGRATIONS_DIR"); val != "" {
		c.Database.MigrationsDir = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		fmt.Sscanf(val, "%d", &c.Redis.DB)
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Telemetry
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Telemetry.Endpoint = val
		c.Telemetry.Enabled = true
	}
	if val := os.Getenv("OTEL_AUTH_HEADER"); val != "" {
		c.Telemetry.AuthHeader = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15
	}

	// Database validation
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "":
		c.Database.Driver = "postgres"
	case "postgres", "pgx", "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver != "memory" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.RetryAttempts <= 0 {
		c.Database.RetryAttempts = 3
	}

	// Telemetry validation
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.URLPath == "" {
		c.Telemetry.URLPath = "/v1/traces"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "penguin-ternos-backend"
	}

	// Inventory defaults
	if c.Inventory.CompleteHoldHours < 0 || c.Inventory.DamagedHoldHours < 0 {
		return fmt.Errorf("maintenance hold hours must not be negative")
	}
	if c.Inventory.CompleteHoldHours == 0 {
		c.Inventory.CompleteHoldHours = 24
	}
	if c.Inventory.DamagedHoldHours == 0 {
		c.Inventory.DamagedHoldHours = 72
	}

	// Idempotency defaults
	if c.Idempotency.TTLHours <= 0 {
		c.Idempotency.TTLHours = 24
	}

	// Scheduler defaults
	if c.Scheduler.ReleaseMaintenanceHolds == "" {
		c.Scheduler.ReleaseMaintenanceHolds = "0 */15 * * * *" // Every 15 minutes
	}
	if c.Scheduler.ReportOverdueRentals == "" {
		c.Scheduler.ReportOverdueRentals = "0 0 8 * * *" // Daily at 8 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the server address in host:port format
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CompleteHold returns the maintenance hold for units returned in good condition
func (c *Config) CompleteHold() time.Duration {
	return time.Duration(c.Inventory.CompleteHoldHours) * time.Hour
}

// DamagedHold returns the maintenance hold for damaged units
func (c *Config) DamagedHold() time.Duration {
	return time.Duration(c.Inventory.DamagedHoldHours) * time.Hour
}

// IdempotencyTTL returns how long a stored POST response is replayed
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Idempotency.TTLHours) * time.Hour
}
