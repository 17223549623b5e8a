package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

var (
	ErrMissingEnvironmentVariables = errors.New("missing required environment variables")
	ErrUnknownDriver               = errors.New("unknown database driver")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string  `mapstructure:"env"`      // current application environment (local, dev, prod etc)
	TelegramAPIToken string  `mapstructure:"-"`        // Telegram API token loaded from environment
	DB               DB      `mapstructure:"database"` // database configuration section
	Streak           Streak  `mapstructure:"streak"`   // progression engine tuning
	Metrics          Metrics `mapstructure:"metrics"`
}

// DB contains database-related configuration parameters.
type DB struct {
	Driver          string        `mapstructure:"driver"`            // postgres or sqlite
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	SQLitePath      string        `mapstructure:"sqlite_path"`       // database file used by the sqlite driver
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// Streak contains the tunable constants of the progression engine.
type Streak struct {
	DailyRequirement     int           `mapstructure:"daily_requirement"`
	TestBaseWindow       time.Duration `mapstructure:"test_base_window"`
	TestPerCardAllowance time.Duration `mapstructure:"test_per_card_allowance"`
	TestMaxWindow        time.Duration `mapstructure:"test_max_window"`
	GraceBuffer          time.Duration `mapstructure:"grace_buffer"`
	PendingActionTTL     time.Duration `mapstructure:"pending_action_ttl"`
	MaxTxRetries         uint64        `mapstructure:"max_tx_retries"`
	FreezeSweepCron      string        `mapstructure:"freeze_sweep_cron"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics endpoint
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Policy converts the streak section into the engine policy.
func (s Streak) Policy() entities.Policy {
	return entities.Policy{
		DailyRequirement:     s.DailyRequirement,
		TestBaseWindow:       s.TestBaseWindow,
		TestPerCardAllowance: s.TestPerCardAllowance,
		TestMaxWindow:        s.TestMaxWindow,
		GraceBuffer:          s.GraceBuffer,
	}
}

// Load reads configuration from config files, an optional .env file and
// environment variables. Config files are looked up in paths, "./config" by default.
func Load(paths ...string) (*Config, error) {
	// Values from .env never override variables already set.
	_ = godotenv.Load()

	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Set default values for configuration keys.
	def := entities.DefaultPolicy()
	v.SetDefault("env", "local")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.sqlite_path", "data/streak.db")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("streak.daily_requirement", def.DailyRequirement)
	v.SetDefault("streak.test_base_window", def.TestBaseWindow)
	v.SetDefault("streak.test_per_card_allowance", def.TestPerCardAllowance)
	v.SetDefault("streak.test_max_window", def.TestMaxWindow)
	v.SetDefault("streak.grace_buffer", def.GraceBuffer)
	v.SetDefault("streak.pending_action_ttl", "10m")
	v.SetDefault("streak.max_tx_retries", 5)
	v.SetDefault("streak.freeze_sweep_cron", "*/5 * * * *")
	v.SetDefault("metrics.addr", ":9090")

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Sensitive values only come from the environment.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	cfg.DB.URL = v.GetString("database_url")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.URL == "" {
			return fmt.Errorf("DATABASE_URL: %w", ErrMissingEnvironmentVariables)
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			return errors.New("database.sqlite_path must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DB.Driver)
	}

	if err := c.Streak.Policy().Validate(); err != nil {
		return fmt.Errorf("streak policy: %w", err)
	}
	if c.Streak.PendingActionTTL <= 0 {
		return errors.New("streak.pending_action_ttl must be positive")
	}

	return nil
}

// RequireTelegram fails when the bot token is not configured.
func (c *Config) RequireTelegram() error {
	if c.TelegramAPIToken == "" {
		return fmt.Errorf("TELEGRAM_API_TOKEN: %w", ErrMissingEnvironmentVariables)
	}
	return nil
}
