// Package config holds the validated runtime configuration for the engine,
// loaded through viper from file and environment.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/chronofact/chronofact/pkg/types"
)

// Defaults for the tunable thresholds. The corroboration threshold is a
// named constant rather than a hard-coded literal inside the fact resolver.
const (
	DefaultFuzzyMatchThreshold         = 0.85
	DefaultAutoMergeThreshold          = 0.95
	DefaultCorroborationThreshold      = 2
	DefaultConflictSimilarityThreshold = 0.25
	DefaultPipelineWorkers             = 4
)

// Config holds all configuration for the engine and its outer surfaces.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Facts    FactsConfig    `mapstructure:"facts"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Extract  ExtractConfig  `mapstructure:"extract"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// TelemetryDir, when set, enables the parquet error-record handler.
	TelemetryDir string `mapstructure:"telemetry_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig selects and configures the backing row-store.
type DatabaseConfig struct {
	// Driver is one of "memory", "sqlite", "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is the connection string; for sqlite a file path or ":memory:".
	DSN string `mapstructure:"dsn"`
	// MaxConnections bounds the connection pool (postgres only).
	MaxConnections int `mapstructure:"max_connections"`
}

// ResolverConfig holds entity-resolution thresholds.
type ResolverConfig struct {
	// FuzzyMatchThreshold is the minimum similarity score for the fuzzy tier.
	FuzzyMatchThreshold float64 `mapstructure:"fuzzy_match_threshold"`
	// AutoMergeThreshold is the score at or above which a near-duplicate
	// mention merges into the existing entity instead of creating a new one.
	AutoMergeThreshold float64 `mapstructure:"auto_merge_threshold"`
}

// FactsConfig holds fact-resolution thresholds.
type FactsConfig struct {
	// CorroborationThreshold is the number of independent corroborating
	// facts required for the canonical -> corroborated transition.
	CorroborationThreshold int `mapstructure:"corroboration_threshold"`
	// ConflictSimilarityThreshold is the minimum similarity between two
	// divergent overlapping facts for them to surface as a conflict pair.
	ConflictSimilarityThreshold float64 `mapstructure:"conflict_similarity_threshold"`
}

// PipelineConfig holds batch-pipeline settings.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
	// ItemTimeoutSeconds bounds a single item's unit of work; 0 disables it.
	ItemTimeoutSeconds int `mapstructure:"item_timeout_seconds"`
	// RatePerSecond throttles item starts; 0 disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// ExtractConfig configures the extractor collaborators.
type ExtractConfig struct {
	// RulesPath points at the YAML pattern file for the rule extractor.
	RulesPath string `mapstructure:"rules_path"`
	// OpenAI settings for the LLM extractor.
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	// Breaker settings for the circuit-breaker wrapper.
	BreakerEnabled bool `mapstructure:"breaker_enabled"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a validated configuration with all defaults applied,
// suitable for embedding the engine as a library.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Host: "localhost", Port: 8080, Mode: "release"},
		Database: DatabaseConfig{Driver: "memory"},
		Resolver: ResolverConfig{
			FuzzyMatchThreshold: DefaultFuzzyMatchThreshold,
			AutoMergeThreshold:  DefaultAutoMergeThreshold,
		},
		Facts: FactsConfig{
			CorroborationThreshold:      DefaultCorroborationThreshold,
			ConflictSimilarityThreshold: DefaultConflictSimilarityThreshold,
		},
		Pipeline: PipelineConfig{Workers: DefaultPipelineWorkers},
	}
}

// Validate checks threshold domains and cross-field consistency.
func (c *Config) Validate() error {
	if c.Resolver.FuzzyMatchThreshold < 0 || c.Resolver.FuzzyMatchThreshold > 1 {
		return &types.ConfigurationError{
			Field:  "resolver.fuzzy_match_threshold",
			Reason: "must be within [0,1]",
		}
	}
	if c.Resolver.AutoMergeThreshold < 0 || c.Resolver.AutoMergeThreshold > 1 {
		return &types.ConfigurationError{
			Field:  "resolver.auto_merge_threshold",
			Reason: "must be within [0,1]",
		}
	}
	if c.Resolver.AutoMergeThreshold < c.Resolver.FuzzyMatchThreshold {
		return &types.ConfigurationError{
			Field:  "resolver.auto_merge_threshold",
			Reason: "must be at least fuzzy_match_threshold",
		}
	}
	if c.Facts.CorroborationThreshold < 1 {
		return &types.ConfigurationError{
			Field:  "facts.corroboration_threshold",
			Reason: "must be at least 1",
		}
	}
	if c.Facts.ConflictSimilarityThreshold < 0 || c.Facts.ConflictSimilarityThreshold > 1 {
		return &types.ConfigurationError{
			Field:  "facts.conflict_similarity_threshold",
			Reason: "must be within [0,1]",
		}
	}
	if c.Pipeline.Workers < 0 {
		return &types.ConfigurationError{
			Field:  "pipeline.workers",
			Reason: "must be non-negative",
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./chronofact.db")
	viper.SetDefault("database.max_connections", 25)

	viper.SetDefault("resolver.fuzzy_match_threshold", DefaultFuzzyMatchThreshold)
	viper.SetDefault("resolver.auto_merge_threshold", DefaultAutoMergeThreshold)

	viper.SetDefault("facts.corroboration_threshold", DefaultCorroborationThreshold)
	viper.SetDefault("facts.conflict_similarity_threshold", DefaultConflictSimilarityThreshold)

	viper.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	viper.SetDefault("pipeline.item_timeout_seconds", 0)
	viper.SetDefault("pipeline.rate_per_second", 0)

	viper.SetDefault("extract.openai_model", "gpt-4o-mini")
}

func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Extract.OpenAIAPIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Extract.OpenAIBaseURL = baseURL
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
}
