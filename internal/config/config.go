package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Slots     SlotsConfig     `mapstructure:"slots"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" envconfig:"PORT"`
	TimeoutSeconds int      `mapstructure:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
	CORSOrigins    []string `mapstructure:"cors_origins" envconfig:"CORS_ORIGINS"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"HOST"`
	Port            int           `mapstructure:"port" envconfig:"PORT"`
	User            string        `mapstructure:"user" envconfig:"USER"`
	Password        string        `mapstructure:"password" envconfig:"PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"NAME"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" envconfig:"AUTO_MIGRATE"`
}

// StoreConfig selects the persistence driver: "postgres" or "memory".
// Clinicians seeds the memory store by name; postgres ignores it.
type StoreConfig struct {
	Driver     string   `mapstructure:"driver" envconfig:"DRIVER"`
	Clinicians []string `mapstructure:"clinicians" envconfig:"CLINICIANS"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled" envconfig:"ENABLED"`
	URL          string        `mapstructure:"url" envconfig:"URL"`
	Channel      string        `mapstructure:"channel" envconfig:"CHANNEL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

// OutboxConfig drives the relay that publishes committed booking events.
type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	MaxAttempts  int           `mapstructure:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" envconfig:"RETRY_DELAY"`
	Lease        time.Duration `mapstructure:"lease" envconfig:"LEASE"`
}

// SlotsConfig drives the generator and the daily regeneration job.
type SlotsConfig struct {
	DaysAhead     int    `mapstructure:"days_ahead" envconfig:"DAYS_AHEAD"`
	Cron          string `mapstructure:"cron" envconfig:"CRON"`
	Timezone      string `mapstructure:"timezone" envconfig:"TIMEZONE"`
	Transactional bool   `mapstructure:"transactional" envconfig:"TRANSACTIONAL"`
	RunOnStart    bool   `mapstructure:"run_on_start" envconfig:"RUN_ON_START"`
}

type CacheConfig struct {
	ClinicianTTL    time.Duration `mapstructure:"clinician_ttl" envconfig:"CLINICIAN_TTL"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" envconfig:"ENABLED"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"burst" envconfig:"BURST"`
}

// AuthConfig guards operator endpoints. An empty secret disables the guard.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET"`
	AdminRole string `mapstructure:"admin_role" envconfig:"ADMIN_ROLE"`
}

type LogConfig struct {
	Level string `mapstructure:"level" envconfig:"LEVEL"`
	JSON  bool   `mapstructure:"json" envconfig:"JSON"`
}

// EnvPrefix is the prefix of environment overrides, e.g. BOOKING_SLOTS_DAYS_AHEAD.
const EnvPrefix = "BOOKING"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeoutSeconds", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("redis.channel", "booking.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("outbox.retry_delay", 30*time.Second)
	v.SetDefault("outbox.lease", time.Minute)
	v.SetDefault("slots.days_ahead", 7)
	v.SetDefault("slots.cron", "0 0 2 * * *")
	v.SetDefault("slots.timezone", "UTC")
	v.SetDefault("slots.transactional", true)
	v.SetDefault("cache.clinician_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the usual locations (a missing file is not
// an error; defaults apply) and then applies BOOKING_* environment overrides.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load is LoadConfig with an explicit config file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(c *Config) error {
	sections := map[string]interface{}{
		"SERVER":     &c.Server,
		"DB":         &c.Database,
		"STORE":      &c.Store,
		"REDIS":      &c.Redis,
		"OUTBOX":     &c.Outbox,
		"SLOTS":      &c.Slots,
		"CACHE":      &c.Cache,
		"RATE_LIMIT": &c.RateLimit,
		"AUTH":       &c.Auth,
		"LOG":        &c.Log,
	}
	for name, section := range sections {
		if err := envconfig.Process(EnvPrefix+"_"+name, section); err != nil {
			return fmt.Errorf("failed to apply %s environment overrides: %w", strings.ToLower(name), err)
		}
	}
	return nil
}

// Validate rejects configurations the generator or scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Slots.DaysAhead <= 0 {
		return fmt.Errorf("slots.days_ahead must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.batch_size, outbox.poll_interval and outbox.max_attempts must be greater than 0")
	}
	if strings.TrimSpace(c.Slots.Cron) == "" {
		return fmt.Errorf("slots.cron must be set")
	}
	if _, err := c.Slots.Location(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver)
	}
	return nil
}

// Location resolves the timezone "today" is computed in.
func (s SlotsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid slots.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (c *ServerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
