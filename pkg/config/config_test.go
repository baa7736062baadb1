package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.CacheCapacity != 128 {
		t.Errorf("CacheCapacity = %d, want 128", cfg.Engine.CacheCapacity)
	}
	if cfg.Engine.DefaultMode != "AND" {
		t.Errorf("DefaultMode = %q, want AND", cfg.Engine.DefaultMode)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Error("redis and kafka should be disabled by default")
	}
	sum := cfg.Engine.Weights.TermFreq + cfg.Engine.Weights.Recency + cfg.Engine.Weights.Usage
	if sum != 1.0 {
		t.Errorf("default weights sum to %v, want 1", sum)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9999
engine:
  cacheCapacity: 16
  defaultMode: OR
redis:
  enabled: true
  cacheTTL: 30s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Engine.CacheCapacity != 16 {
		t.Errorf("CacheCapacity = %d, want 16", cfg.Engine.CacheCapacity)
	}
	if cfg.Engine.DefaultMode != "OR" {
		t.Errorf("DefaultMode = %q, want OR", cfg.Engine.DefaultMode)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("Redis = %+v, want enabled with 30s TTL", cfg.Redis)
	}
	// Unset fields keep their defaults.
	if cfg.Engine.MaxTopK != 100 {
		t.Errorf("MaxTopK = %d, want default 100", cfg.Engine.MaxTopK)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SSO_SERVER_PORT", "7070")
	t.Setenv("SSO_ENGINE_DEFAULT_MODE", "OR")
	t.Setenv("SSO_REDIS_ENABLED", "true")
	t.Setenv("SSO_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Engine.DefaultMode != "OR" {
		t.Errorf("DefaultMode = %q, want OR", cfg.Engine.DefaultMode)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis should be enabled via env")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := defaultConfig().Engine
	if err := valid.Validate(); err != nil {
		t.Fatalf("default engine config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"zero cache capacity", func(e *EngineConfig) { e.CacheCapacity = 0 }},
		{"negative decay", func(e *EngineConfig) { e.RecencyDecay = -1 }},
		{"zero usage cap", func(e *EngineConfig) { e.UsageCap = 0 }},
		{"max below default topK", func(e *EngineConfig) { e.MaxTopK = 1 }},
		{"negative weight", func(e *EngineConfig) {
			e.Weights = RankingWeights{TermFreq: 1.3, Recency: -0.3, Usage: 0}
		}},
		{"weights not summing to 1", func(e *EngineConfig) {
			e.Weights = RankingWeights{TermFreq: 0.5, Recency: 0.5, Usage: 0.5}
		}},
		{"all-zero weights", func(e *EngineConfig) { e.Weights = RankingWeights{} }},
		{"bad mode", func(e *EngineConfig) { e.DefaultMode = "XOR" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig().Engine
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}
