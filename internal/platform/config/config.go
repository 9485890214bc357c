// Package config loads heirloom's runtime configuration.
//
// Values are resolved in three layers: an optional TOML file, then HEIRLOOM_*
// environment overrides, then defaults for anything still unset.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	pstrings "heirloom/pkg/platform/strings"
)

// Config is the root configuration document.
type Config struct {
	Server     Server           `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Kafka      KafkaConfig      `toml:"kafka"`
	Archive    ArchiveConfig    `toml:"archive"`
	Succession SuccessionConfig `toml:"succession"`
	Jobs       JobsConfig       `toml:"jobs"`
	Plans      PlansConfig      `toml:"plans"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string `toml:"addr"`
	LogLevel   string `toml:"log_level"`
	AdminToken string `toml:"admin_token"`
	// PublicBaseURL prefixes download links handed to successors.
	PublicBaseURL string `toml:"public_base_url"`
}

// DatabaseConfig selects the persistence backend.
// Driver is "memory" or "postgres"; URL is only read for postgres.
type DatabaseConfig struct {
	Driver          string        `toml:"driver"`
	URL             string        `toml:"url"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	TxTimeout       time.Duration `toml:"tx_timeout"`
}

// RedisConfig configures the job lock backend. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `toml:"url"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// KafkaConfig configures the outbox relay and notification hand-off.
// No brokers means events stay in the outbox and notifications are logged only.
type KafkaConfig struct {
	Brokers            []string      `toml:"brokers"`
	ClientID           string        `toml:"client_id"`
	AuditTopicPrefix   string        `toml:"audit_topic_prefix"`
	NotificationsTopic string        `toml:"notifications_topic"`
	RelayInterval      time.Duration `toml:"relay_interval"`
	RelayBatchSize     int           `toml:"relay_batch_size"`
}

// ArchiveConfig points at the external export service.
type ArchiveConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

type SuccessionConfig struct {
	// DemoMode skips successor notification on release.
	DemoMode bool `toml:"demo_mode"`
}

type JobsConfig struct {
	Enabled                 bool          `toml:"enabled"`
	ScanReleasesInterval    time.Duration `toml:"scan_releases_interval"`
	TreeCountHealthInterval time.Duration `toml:"tree_count_health_interval"`
	EmptyLegacyInterval     time.Duration `toml:"empty_legacy_interval"`
	EmptyLegacyDaysOld      int           `toml:"empty_legacy_days_old"`
	LockTTL                 time.Duration `toml:"lock_ttl"`
}

type PlansConfig struct {
	// CatalogPath overrides the embedded plan catalog when set.
	CatalogPath string `toml:"catalog_path"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Read decodes a Config from r and fills defaults.
func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads path (if non-empty), applies environment overrides from getenv,
// then defaults.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()
		if _, err := toml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Jobs.EmptyLegacyDaysOld < 0 {
		return fmt.Errorf("jobs.empty_legacy_days_old must not be negative")
	}
	return nil
}

// HasKafka reports whether a broker list is configured.
func (c *Config) HasKafka() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString("HEIRLOOM_ADDR", &c.Server.Addr)
	setString("HEIRLOOM_LOG_LEVEL", &c.Server.LogLevel)
	setString("HEIRLOOM_ADMIN_TOKEN", &c.Server.AdminToken)
	setString("HEIRLOOM_PUBLIC_BASE_URL", &c.Server.PublicBaseURL)
	setString("HEIRLOOM_DATABASE_DRIVER", &c.Database.Driver)
	setString("HEIRLOOM_DATABASE_URL", &c.Database.URL)
	setString("HEIRLOOM_REDIS_URL", &c.Redis.URL)
	setString("HEIRLOOM_ARCHIVE_URL", &c.Archive.BaseURL)
	setString("HEIRLOOM_PLANS_CATALOG", &c.Plans.CatalogPath)

	if v := getenv("HEIRLOOM_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("HEIRLOOM_DEMO_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HEIRLOOM_DEMO_MODE: %w", err)
		}
		c.Succession.DemoMode = b
	}
	if v := getenv("HEIRLOOM_JOBS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HEIRLOOM_JOBS_ENABLED: %w", err)
		}
		c.Jobs.Enabled = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.TxTimeout == 0 {
		c.Database.TxTimeout = 5 * time.Second
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	c.Kafka.Brokers = pstrings.DedupeAndTrim(c.Kafka.Brokers)
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "heirloom"
	}
	if c.Kafka.AuditTopicPrefix == "" {
		c.Kafka.AuditTopicPrefix = "heirloom.audit."
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "heirloom.notifications"
	}
	if c.Kafka.RelayInterval == 0 {
		c.Kafka.RelayInterval = 2 * time.Second
	}
	if c.Kafka.RelayBatchSize == 0 {
		c.Kafka.RelayBatchSize = 100
	}
	if c.Archive.Timeout == 0 {
		c.Archive.Timeout = 30 * time.Second
	}
	if c.Jobs.ScanReleasesInterval == 0 {
		c.Jobs.ScanReleasesInterval = time.Hour
	}
	if c.Jobs.TreeCountHealthInterval == 0 {
		c.Jobs.TreeCountHealthInterval = 6 * time.Hour
	}
	if c.Jobs.EmptyLegacyInterval == 0 {
		c.Jobs.EmptyLegacyInterval = 24 * time.Hour
	}
	if c.Jobs.EmptyLegacyDaysOld == 0 {
		c.Jobs.EmptyLegacyDaysOld = 30
	}
	if c.Jobs.LockTTL == 0 {
		c.Jobs.LockTTL = 10 * time.Minute
	}
}
