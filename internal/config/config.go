package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Season map and datasets
	SeasonMapFile     string   `envconfig:"SEASON_MAP_FILE" default:"config/season_map.yaml"`
	DatasetPathFormat string   `envconfig:"DATASET_PATH_FORMAT" default:"docs/csv/{season}_allmatch_result-{competition}.csv"`
	LedgerFile        string   `envconfig:"LEDGER_FILE" default:"docs/csv/csv_timestamp.csv"`
	Timezone          string   `envconfig:"TIMEZONE" default:"Asia/Tokyo"`
	Season            string   `envconfig:"SEASON" default:""`
	GroupKey          string   `envconfig:"GROUP_KEY" default:"jleague"`
	Competitions      []string `envconfig:"COMPETITIONS" default:""`

	// Upstream sources
	JLeagueURLFormat string        `envconfig:"JLEAGUE_URL_FORMAT" default:"https://www.jleague.jp/match/section/{category}/{section}/"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	UserAgent        string        `envconfig:"USER_AGENT" default:"jpoints-matchsync/1.0"`
	FeedMaxRetries   int           `envconfig:"FEED_MAX_RETRIES" default:"3"`
	FeedRetryDelay   time.Duration `envconfig:"FEED_RETRY_DELAY" default:"2s"`

	// Scheduler
	EnableScheduler    bool            `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool            `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	NightlySyncCron    string          `envconfig:"NIGHTLY_SYNC_CRON" default:"0 16 * * *"`
	PollInterval       time.Duration   `envconfig:"POLL_INTERVAL" default:"0s"`
	KickoffOffsets     []time.Duration `envconfig:"KICKOFF_OFFSETS" default:"50m,100m"`
	CronTimezone       string          `envconfig:"CRON_TIMEZONE" default:"UTC"`

	// Redis
	EnableRedis       bool   `envconfig:"ENABLE_REDIS" default:"false"`
	RedisHost         string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort         int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword     string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB           int    `envconfig:"REDIS_DB" default:"0"`
	RedisStream       string `envconfig:"REDIS_STREAM" default:"jpoints.datasets.updated"`
	RedisStreamMaxLen int64  `envconfig:"REDIS_STREAM_MAX_LEN" default:"10000"`

	// Database
	EnableArchive    bool   `envconfig:"ENABLE_ARCHIVE" default:"false"`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"jpoints"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"jpoints"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`

	// Monitoring
	EnableMetrics  bool   `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort    int    `envconfig:"METRICS_PORT" default:"9090"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL" default:""`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SeasonMapFile == "" {
		return fmt.Errorf("SEASON_MAP_FILE is required")
	}

	if !strings.Contains(c.DatasetPathFormat, "{season}") || !strings.Contains(c.DatasetPathFormat, "{competition}") {
		return fmt.Errorf("DATASET_PATH_FORMAT must contain {season} and {competition}")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	if _, err := time.LoadLocation(c.CronTimezone); err != nil {
		return fmt.Errorf("invalid CRON_TIMEZONE %q: %w", c.CronTimezone, err)
	}

	if c.FeedMaxRetries < 0 {
		return fmt.Errorf("FEED_MAX_RETRIES must not be negative")
	}

	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL must not be negative")
	}

	for _, off := range c.KickoffOffsets {
		if off <= 0 {
			return fmt.Errorf("KICKOFF_OFFSETS must be positive durations")
		}
	}

	if c.EnableArchive && c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required when ENABLE_ARCHIVE is set")
	}

	return nil
}

// Location returns the timezone match dates and the ledger are expressed in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CronLocation returns the timezone cron lines are evaluated in
func (c *Config) CronLocation() *time.Location {
	loc, err := time.LoadLocation(c.CronTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or exits on error
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
