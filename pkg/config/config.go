package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled"`
			Rate    float64 `yaml:"rate" default:"20" validate:"gt=0"`
			Burst   int     `yaml:"burst" default:"40" validate:"gte=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Simulation struct {
		Steps     int    `yaml:"steps" default:"2500" validate:"gte=0"`
		Trials    int    `yaml:"trials" default:"1000" validate:"gte=1"`
		Workers   int    `yaml:"workers" default:"8" validate:"gte=1"`
		MaxDraws  int    `yaml:"max_draws" default:"10000" validate:"gte=1"`
		Seed      uint64 `yaml:"seed" default:"42"`
		Direction string `yaml:"direction" default:"up" validate:"oneof=up down"`
		Kind      string `yaml:"kind" default:"levy_stable" validate:"oneof=gaussian uniform levy_stable levy stable"`
	} `yaml:"simulation"`
	Data struct {
		Dir       string `yaml:"dir" default:"data"`
		OutputDir string `yaml:"output_dir" default:"."`
		Universe  string `yaml:"universe" default:"S&P500-Symbols.csv"`
		Start     string `yaml:"start" default:"2010-06-08" validate:"datetime=2006-01-02"`
		End       string `yaml:"end" default:"2020-06-08" validate:"datetime=2006-01-02"`
		Lags      int    `yaml:"lags" default:"7" validate:"gte=0"`
	} `yaml:"data"`
	Backend struct {
		Type         string        `yaml:"type" default:"none" validate:"oneof=kafka clickhouse none"`
		BatchSize    int           `yaml:"batch_size" default:"500" validate:"gte=1"`
		BufferSize   int           `yaml:"buffer_size" default:"1000" validate:"gte=1"`
		RetryMin     time.Duration `yaml:"retry_min" default:"50ms"`
		RetryMax     time.Duration `yaml:"retry_max" default:"2s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		Topic            string   `yaml:"topic" default:"simulated-paths"`
		CalibrationTopic string   `yaml:"calibration_topic" default:"calibrations"`
		RequiredAcks     int      `yaml:"required_acks" default:"1" validate:"oneof=-1 0 1"`
		Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"noisymarket"`
			Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"100" validate:"gte=1"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"noisymarket"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		TTL         time.Duration `yaml:"ttl" default:"24h"`
		MemoryTTL   time.Duration `yaml:"memory_ttl" default:"10m"`
		MaxSize     int           `yaml:"max_size" default:"1000"`
		KeyPrefix   string        `yaml:"key_prefix" default:"noisymarket"`
		JobTTL      time.Duration `yaml:"job_ttl" default:"1h"`
		CleanupTick time.Duration `yaml:"cleanup_interval" default:"1m"`
	} `yaml:"cache"`
	Queue struct {
		Name        string        `yaml:"name" default:"montecarlo"`
		Workers     int           `yaml:"workers" default:"2" validate:"gte=1"`
		MaxRetries  int           `yaml:"max_retries" default:"2"`
		RetryDelay  time.Duration `yaml:"retry_delay" default:"2s"`
		PollTimeout time.Duration `yaml:"poll_timeout" default:"1s"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Default returns a configuration populated only from the struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file falls back to the defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SIM_SEED: %w", err)
		}
		c.Simulation.Seed = seed
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks field constraints and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when the calibration consumer is enabled")
	}
	start, _ := time.Parse("2006-01-02", c.Data.Start)
	end, _ := time.Parse("2006-01-02", c.Data.End)
	if !end.After(start) {
		return fmt.Errorf("data.end must be after data.start")
	}
	return nil
}

// Period returns the parsed history window.
func (c *Config) Period() (start, end time.Time) {
	start, _ = time.Parse("2006-01-02", c.Data.Start)
	end, _ = time.Parse("2006-01-02", c.Data.End)
	return start, end
}
