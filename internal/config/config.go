package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	customerrors "github.com/axellelanca/sitepulse/internal/errors"
)

// Supported values for database.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML/JSON keys to Go struct fields.
type Config struct {
	// Server configuration section containing HTTP server settings
	Server struct {
		Port int    `mapstructure:"port"` // HTTP server port (default: 8080)
		Mode string `mapstructure:"mode"` // gin mode: debug, release or test
	} `mapstructure:"server"`

	// Database configuration section. Driver selects the backend; the other keys
	// are only read by the backend they belong to.
	Database struct {
		Driver        string `mapstructure:"driver"`         // sqlite, postgres or mongo
		Name          string `mapstructure:"name"`           // SQLite database file name
		DSN           string `mapstructure:"dsn"`            // Postgres connection string
		MongoURI      string `mapstructure:"mongo_uri"`      // MongoDB connection URI
		MongoDatabase string `mapstructure:"mongo_database"` // MongoDB database name
	} `mapstructure:"database"`

	// Geo configuration for IP resolution
	Geo struct {
		Endpoint        string `mapstructure:"endpoint"`          // ip-api compatible URL template, %s is the IP
		TimeoutSeconds  int    `mapstructure:"timeout_seconds"`   // Upstream lookup timeout
		CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"` // How long a resolved IP stays cached
		CacheMaxEntries int    `mapstructure:"cache_max_entries"` // Upper bound of the in-memory cache
	} `mapstructure:"geo"`

	// Analytics configuration for asynchronous activity tracking and presence
	Analytics struct {
		BufferSize          int `mapstructure:"buffer_size"`           // Size of the activity event channel buffer
		WorkerCount         int `mapstructure:"worker_count"`          // Number of worker goroutines persisting activities
		OnlineWindowMinutes int `mapstructure:"online_window_minutes"` // A visitor seen within this window counts as online
	} `mapstructure:"analytics"`

	// Monitor configuration for the presence sweep
	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"` // Interval in minutes between sweeps
	} `mapstructure:"monitor"`
}

// LoadConfig loads the application configuration using Viper.
// An optional .env file is loaded first so its values are visible as environment variables,
// then configs/config.yaml, then environment overrides (e.g. DATABASE_DRIVER).
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	v := viper.New()

	// "server.port" becomes "SERVER_PORT"
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using default values")
		} else {
			return nil, customerrors.ErrConfigLoad{Path: "./configs/config.yaml", Reason: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Driver=%s, Activity Buffer=%d, Monitor Interval=%dmin",
		cfg.Server.Port, cfg.Database.Driver, cfg.Analytics.BufferSize, cfg.Monitor.IntervalMinutes)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.name", "sitepulse.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo_database", "sitepulse")
	v.SetDefault("geo.endpoint", "http://ip-api.com/json/%s?fields=status,message,country,countryCode,city")
	v.SetDefault("geo.timeout_seconds", 3)
	v.SetDefault("geo.cache_ttl_minutes", 60)
	v.SetDefault("geo.cache_max_entries", 10000)
	v.SetDefault("analytics.buffer_size", 1000)
	v.SetDefault("analytics.worker_count", 5)
	v.SetDefault("analytics.online_window_minutes", 5)
	v.SetDefault("monitor.interval_minutes", 1)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("%w: %q", customerrors.ErrUnsupportedDriver, c.Database.Driver)
	}
	if c.Database.Driver == DriverPostgres && c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn must be set for the postgres driver")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Analytics.WorkerCount < 1 {
		return fmt.Errorf("config: analytics.worker_count must be at least 1")
	}
	if c.Analytics.BufferSize < 0 {
		return fmt.Errorf("config: analytics.buffer_size must not be negative")
	}
	return nil
}

// GeoTimeout returns the upstream lookup timeout, 3s when unset.
func (c *Config) GeoTimeout() time.Duration {
	if c.Geo.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Geo.TimeoutSeconds) * time.Second
}

// GeoCacheTTL returns the cache expiry, one hour when unset.
func (c *Config) GeoCacheTTL() time.Duration {
	if c.Geo.CacheTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Geo.CacheTTLMinutes) * time.Minute
}

// OnlineWindow returns how recently a visitor must have been seen to count as online.
func (c *Config) OnlineWindow() time.Duration {
	if c.Analytics.OnlineWindowMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Analytics.OnlineWindowMinutes) * time.Minute
}

// MonitorInterval returns the presence sweep interval.
func (c *Config) MonitorInterval() time.Duration {
	if c.Monitor.IntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}
