package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	State      StateConfig      `mapstructure:"state"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Admin      AdminConfig      `mapstructure:"admin"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Membership MembershipConfig `mapstructure:"membership"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Events     EventsConfig     `mapstructure:"events"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type JWTConfig struct {
	SigningKey     string        `mapstructure:"signing_key"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" | "console"
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MembershipConfig holds the membership tier policy.
type MembershipConfig struct {
	FreeQuota           int           `mapstructure:"free_quota"`
	MonthlyQuota        int           `mapstructure:"monthly_quota"`
	MonthlyDuration     time.Duration `mapstructure:"monthly_duration"`
	QuotaPeriod         time.Duration `mapstructure:"quota_period"`
	CodeValidity        time.Duration `mapstructure:"code_validity"`
	MaxCodesPerBatch    int           `mapstructure:"max_codes_per_batch"`
	RedeemMaxFailures   int           `mapstructure:"redeem_max_failures"`
	RedeemFailureWindow time.Duration `mapstructure:"redeem_failure_window"`
}

type SweeperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type EventsConfig struct {
	Backend     string        `mapstructure:"backend"` // "rabbitmq" | "noop"
	RabbitMQURL string        `mapstructure:"rabbitmq_url"`
	Exchange    string        `mapstructure:"exchange"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// Load reads config.yaml, overlays environment variables, and returns Config.
// A .env file next to the binary is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable override: DATABASE_POSTGRES_HOST -> database.postgres.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.GracefulShutdownTimeout == 0 {
		c.Server.GracefulShutdownTimeout = 10 * time.Second
	}
	if c.State.Backend == "" {
		c.State.Backend = "memory"
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	m := &c.Membership
	if m.FreeQuota == 0 {
		m.FreeQuota = 3
	}
	if m.MonthlyQuota == 0 {
		m.MonthlyQuota = 10
	}
	if m.MonthlyDuration == 0 {
		m.MonthlyDuration = 30 * 24 * time.Hour
	}
	if m.QuotaPeriod == 0 {
		m.QuotaPeriod = 30 * 24 * time.Hour
	}
	if m.CodeValidity == 0 {
		m.CodeValidity = 365 * 24 * time.Hour
	}
	if m.MaxCodesPerBatch == 0 {
		m.MaxCodesPerBatch = 100
	}
	if m.RedeemMaxFailures == 0 {
		m.RedeemMaxFailures = 10
	}
	if m.RedeemFailureWindow == 0 {
		m.RedeemFailureWindow = time.Hour
	}

	if c.Sweeper.Interval == 0 {
		c.Sweeper.Interval = time.Hour
	}
	if c.Sweeper.BatchSize == 0 {
		c.Sweeper.BatchSize = 200
	}

	if c.Events.Backend == "" {
		c.Events.Backend = "noop"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "vipcenter.events"
	}
	b := &c.Events.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.Interval == 0 {
		b.Interval = time.Minute
	}
	if b.Timeout == 0 {
		b.Timeout = 30 * time.Second
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	switch c.Events.Backend {
	case "rabbitmq", "noop":
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	if c.Events.Backend == "rabbitmq" && c.Events.RabbitMQURL == "" {
		return errors.New("events.rabbitmq_url is required for the rabbitmq backend")
	}

	m := c.Membership
	if m.FreeQuota < 0 || m.MonthlyQuota <= 0 {
		return errors.New("membership quotas must be positive")
	}
	if m.QuotaPeriod > m.MonthlyDuration {
		return errors.New("membership.quota_period must not exceed membership.monthly_duration")
	}
	if m.MaxCodesPerBatch <= 0 {
		return errors.New("membership.max_codes_per_batch must be positive")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return errors.New("sweeper.interval must be positive when the sweeper is enabled")
	}
	return nil
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DB, p.SSLMode)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
