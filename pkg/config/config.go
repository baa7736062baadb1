// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Engine, Redis, Kafka, Logging, Metrics).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RankingWeights holds the relative weight of each relevance component.
// The three weights are expected to sum to 1.
type RankingWeights struct {
	TermFreq float64 `yaml:"termFreq"`
	Recency  float64 `yaml:"recency"`
	Usage    float64 `yaml:"usage"`
}

// EngineConfig controls the in-memory search engine: result cache size,
// ranking parameters, and query limits.
type EngineConfig struct {
	CacheCapacity        int            `yaml:"cacheCapacity"`
	Weights              RankingWeights `yaml:"weights"`
	RecencyDecay         float64        `yaml:"recencyDecay"`
	UsageCap             int            `yaml:"usageCap"`
	DefaultMode          string         `yaml:"defaultMode"`
	DefaultTopK          int            `yaml:"defaultTopK"`
	MaxTopK              int            `yaml:"maxTopK"`
	AutocompleteLimit    int            `yaml:"autocompleteLimit"`
	MaxAutocompleteLimit int            `yaml:"maxAutocompleteLimit"`
}

// RedisConfig holds connection parameters for the optional shared query
// cache. When Enabled is false the engine's own LRU is the only cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker and topic settings for the optional analytics
// event stream.
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"eventsTopic"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

// Validate checks the engine parameters that have hard constraints.
func (e EngineConfig) Validate() error {
	if e.CacheCapacity <= 0 {
		return fmt.Errorf("cacheCapacity must be positive, got %d", e.CacheCapacity)
	}
	if e.Weights.TermFreq < 0 || e.Weights.Recency < 0 || e.Weights.Usage < 0 {
		return fmt.Errorf("ranking weights must be non-negative, got termFreq=%g recency=%g usage=%g",
			e.Weights.TermFreq, e.Weights.Recency, e.Weights.Usage)
	}
	if sum := e.Weights.TermFreq + e.Weights.Recency + e.Weights.Usage; math.Abs(sum-1) > 0.01 {
		return fmt.Errorf("ranking weights must sum to 1, got %g", sum)
	}
	if e.RecencyDecay <= 0 {
		return fmt.Errorf("recencyDecay must be positive, got %g", e.RecencyDecay)
	}
	if e.UsageCap <= 0 {
		return fmt.Errorf("usageCap must be positive, got %d", e.UsageCap)
	}
	if e.DefaultTopK <= 0 || e.MaxTopK < e.DefaultTopK {
		return fmt.Errorf("topK bounds invalid: default=%d max=%d", e.DefaultTopK, e.MaxTopK)
	}
	switch strings.ToUpper(e.DefaultMode) {
	case "AND", "OR":
	default:
		return fmt.Errorf("defaultMode must be AND or OR, got %q", e.DefaultMode)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			CacheCapacity: 128,
			Weights: RankingWeights{
				TermFreq: 0.5,
				Recency:  0.3,
				Usage:    0.2,
			},
			RecencyDecay:         1.0 / 3600.0,
			UsageCap:             10,
			DefaultMode:          "AND",
			DefaultTopK:          10,
			MaxTopK:              100,
			AutocompleteLimit:    10,
			MaxAutocompleteLimit: 50,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:     false,
			Brokers:     []string{"localhost:9092"},
			EventsTopic: "organizer-events",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SSO_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SSO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SSO_ENGINE_CACHE_CAPACITY"); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil {
			cfg.Engine.CacheCapacity = capacity
		}
	}
	if v := os.Getenv("SSO_ENGINE_DEFAULT_MODE"); v != "" {
		cfg.Engine.DefaultMode = v
	}
	if v := os.Getenv("SSO_ENGINE_DEFAULT_TOPK"); v != "" {
		if topK, err := strconv.Atoi(v); err == nil {
			cfg.Engine.DefaultTopK = topK
		}
	}
	if v := os.Getenv("SSO_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SSO_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SSO_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SSO_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SSO_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SSO_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SSO_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SSO_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
