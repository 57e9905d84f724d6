package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MarketMood/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
	} `yaml:"logging"`
	Markets struct {
		IDs      []string `yaml:"ids" validate:"required,min=1,dive,required"`
		DaysBack int      `yaml:"days_back" default:"30" validate:"min=2,max=365"`
	} `yaml:"markets"`
	Source struct {
		Type         string        `yaml:"type" default:"yahoo" validate:"oneof=yahoo clickhouse synthetic"`
		Fallback     string        `yaml:"fallback" validate:"omitempty,oneof=synthetic"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"15s"`
		Concurrency  int           `yaml:"concurrency" default:"5" validate:"min=1,max=64"`
		Yahoo        struct {
			BaseURL   string `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			UserAgent string `yaml:"user_agent" default:"Mozilla/5.0 (compatible; MarketMood/1.0)"`
		} `yaml:"yahoo"`
		Synthetic struct {
			Seed int64 `yaml:"seed"`
		} `yaml:"synthetic"`
	} `yaml:"source"`
	Analytics struct {
		Weights struct {
			Return     float64 `yaml:"return" default:"0.5"`
			Volatility float64 `yaml:"volatility" default:"-0.3"`
			Volume     float64 `yaml:"volume" default:"0.2"`
		} `yaml:"weights"`
		CorrelationThreshold float64 `yaml:"correlation_threshold" default:"0.6" validate:"gt=0,lte=1"`
	} `yaml:"analytics"`
	Store struct {
		Driver          string        `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
		DSN             string        `yaml:"dsn" default:"file:marketmood.db?_pragma=busy_timeout(5000)"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"1"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"1"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"marketmood"`
		Table            string        `yaml:"table" default:"daily_candles"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		AutoCreate   bool     `yaml:"auto_create_topics"`
		Topics       struct {
			Runs  string `yaml:"runs" default:"marketmood.runs"`
			Moods string `yaml:"moods" default:"marketmood.moods"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled     bool          `yaml:"enabled"`
		Addr        string        `yaml:"addr" default:"localhost:6379"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"10m"`
	} `yaml:"redis"`
	Scheduler struct {
		Enabled     bool          `yaml:"enabled" default:"true"`
		DailyCron   string        `yaml:"daily_cron" default:"0 9 * * *" validate:"required"`
		CleanupCron string        `yaml:"cleanup_cron" default:"0 2 * * 0" validate:"required"`
		Timezone    string        `yaml:"timezone" default:"UTC"`
		DaysToKeep  int           `yaml:"days_to_keep" default:"90" validate:"min=0"`
		RunTimeout  time.Duration `yaml:"run_timeout" default:"10m"`
	} `yaml:"scheduler"`
	RateLimit struct {
		TriggerCapacity float64 `yaml:"trigger_capacity" default:"3"`
		TriggerRefill   float64 `yaml:"trigger_refill_per_sec" default:"0.05"`
	} `yaml:"ratelimit"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("MARKETS"); v != "" {
		c.Markets.IDs = util.SplitCSV(v)
	}
	if v := getenv("SOURCE_TYPE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Source.Type == "synthetic" && c.Source.Fallback != "" {
		return fmt.Errorf("source.fallback is meaningless when source.type is synthetic")
	}
	if c.Store.Driver == "postgres" && !strings.HasPrefix(c.Store.DSN, "postgres") {
		return fmt.Errorf("store.dsn must be a postgres URL when store.driver is postgres")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}
