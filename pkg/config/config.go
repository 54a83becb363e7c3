package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Provider    ProviderConfig   `yaml:"provider"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Queue       QueueConfig      `yaml:"queue"`
	Quant       QuantConfig      `yaml:"quant"`
	Ledger      LedgerConfig     `yaml:"ledger"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
	CORS            bool          `yaml:"cors" default:"true"`
	RateLimit       struct {
		RPS   float64 `yaml:"rps" default:"2"`
		Burst int     `yaml:"burst" default:"10"`
	} `yaml:"rate_limit"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

type LoggingConfig struct {
	Level         string `yaml:"level" default:"info"`
	Format        string `yaml:"format" default:"json"`
	Output        string `yaml:"output" default:"stdout"`
	CollectErrors bool   `yaml:"collect_errors"`
	CollectTopic  string `yaml:"collect_topic" default:"quant.logs"`
}

type ProviderConfig struct {
	// Type is yahoo, clickhouse or http.
	Type     string        `yaml:"type" default:"yahoo"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout" default:"20s"`
	Retries  int           `yaml:"retries" default:"2"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"15m"`
}

type ClickHouseConfig struct {
	Addrs            []string      `yaml:"addrs"`
	Database         string        `yaml:"database" default:"quant"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	Compression      bool          `yaml:"compression" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	InitSchema       bool          `yaml:"init_schema"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" default:"localhost"`
	Port     int           `yaml:"port" default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size" default:"10"`
	Prefix   string        `yaml:"prefix" default:"quant"`
	L1TTL    time.Duration `yaml:"l1_ttl" default:"1m"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix" default:"quant."`
	Compression string   `yaml:"compression" default:"gzip"`
	Producer    struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		Topic      string        `yaml:"topic" default:"quant.predictions.submitted"`
		GroupID    string        `yaml:"group_id" default:"quant-ledger"`
		Workers    int           `yaml:"workers" default:"1"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"quant.predictions.dlq"`
	} `yaml:"consumer"`
}

type QueueConfig struct {
	Workers    int           `yaml:"workers" default:"1"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
}

type QuantConfig struct {
	FitTimeout     time.Duration `yaml:"fit_timeout" default:"20s"`
	RiskFreeRate   float64       `yaml:"risk_free_rate" default:"0.02"`
	Confidence     float64       `yaml:"confidence" default:"0.95"`
	Simulations    int           `yaml:"simulations" default:"10000"`
	HorizonDays    int           `yaml:"horizon_days" default:"30"`
	HoldingPeriods []int         `yaml:"holding_periods"`
	Benchmark      string        `yaml:"benchmark" default:"SPY"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

type LedgerConfig struct {
	Dir           string        `yaml:"dir" default:"data/predictions"`
	ArchiveAge    time.Duration `yaml:"archive_age" default:"8760h"`
	ScoreInterval time.Duration `yaml:"score_interval" default:"6h"`
	ArchiveEvery  time.Duration `yaml:"archive_interval" default:"24h"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"10m"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.applyComputed()
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyComputed()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file (or defaults when path is
// empty), then applies QUANT_* environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyComputed() {
	if len(c.Quant.HoldingPeriods) == 0 {
		c.Quant.HoldingPeriods = []int{5, 20, 60}
	}
}

func (c *Config) applyEnv(get func(string) string) {
	str := func(key string, dst *string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := get(key); v != "" {
			*dst = strings.Split(v, ",")
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(get(key)); err == nil {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, err := strconv.Atoi(get(key)); err == nil {
			*dst = v
		}
	}

	str("QUANT_ENV", &c.Environment)
	integer("QUANT_PORT", &c.Server.Port)
	str("QUANT_LOG_LEVEL", &c.Logging.Level)
	str("QUANT_PROVIDER", &c.Provider.Type)
	str("QUANT_PROVIDER_URL", &c.Provider.BaseURL)
	str("QUANT_PROVIDER_API_KEY", &c.Provider.APIKey)
	list("QUANT_CLICKHOUSE_ADDRS", &c.ClickHouse.Addrs)
	str("QUANT_CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	boolean("QUANT_REDIS_ENABLED", &c.Redis.Enabled)
	str("QUANT_REDIS_HOST", &c.Redis.Host)
	str("QUANT_REDIS_PASSWORD", &c.Redis.Password)
	boolean("QUANT_KAFKA_ENABLED", &c.Kafka.Enabled)
	list("QUANT_KAFKA_BROKERS", &c.Kafka.Brokers)
	str("QUANT_LEDGER_DIR", &c.Ledger.Dir)
	if v, err := strconv.ParseFloat(get("QUANT_RISK_FREE_RATE"), 64); err == nil {
		c.Quant.RiskFreeRate = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Provider.Type {
	case "yahoo":
	case "http":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.base_url is required for the http provider")
		}
	case "clickhouse":
		if len(c.ClickHouse.Addrs) == 0 {
			return fmt.Errorf("clickhouse.addrs is required for the clickhouse provider")
		}
	default:
		return fmt.Errorf("provider.type must be 'yahoo', 'clickhouse' or 'http', got '%s'", c.Provider.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Quant.Confidence <= 0 || c.Quant.Confidence >= 1 {
		return fmt.Errorf("quant.confidence must be in (0, 1), got %v", c.Quant.Confidence)
	}
	if c.Quant.Simulations <= 0 || c.Quant.HorizonDays <= 0 {
		return fmt.Errorf("quant.simulations and quant.horizon_days must be positive")
	}
	if c.Ledger.Dir == "" {
		return fmt.Errorf("ledger.dir is required")
	}
	return nil
}
