package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the environment-driven configuration for the duplicate
// analysis pipeline. PATH_TO_DATABASE and NAME_DB are the only values
// without defaults; everything else has a sane positive default.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDir  string `envconfig:"PATH_TO_DATABASE" required:"true"`
	DatabaseName string `envconfig:"NAME_DB" required:"true"`
	CSVPath      string `envconfig:"PATH_TO_CSV" default:""`

	EnableEmbedding bool `envconfig:"DEDUPER_ENABLE_EMBEDDING" default:"true"`

	BatchSizeLoad        int `envconfig:"DEDUPER_BATCH_SIZE_LOAD" default:"1000"`
	BatchSizeStates      int `envconfig:"DEDUPER_BATCH_SIZE_STATES" default:"1000"`
	BatchSizeURL         int `envconfig:"DEDUPER_BATCH_SIZE_URL" default:"1000"`
	BatchSizeContentHash int `envconfig:"DEDUPER_BATCH_SIZE_CONTENT_HASH" default:"1000"`
	BatchSizeEmbedding   int `envconfig:"DEDUPER_BATCH_SIZE_EMBEDDING" default:"100"`

	CacheMaxEntries    int `envconfig:"DEDUPER_CACHE_MAX_ENTRIES" default:"10000"`
	CheckpointInterval int `envconfig:"DEDUPER_CHECKPOINT_INTERVAL" default:"250"`

	EmbeddingEndpoint       string        `envconfig:"DEDUPER_EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModelName      string        `envconfig:"DEDUPER_EMBEDDING_MODEL" default:"all-MiniLM-L6-v2"`
	EmbeddingDimensions     int           `envconfig:"DEDUPER_EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingMaxLength      int           `envconfig:"DEDUPER_EMBEDDING_MAX_LENGTH" default:"256"`
	EmbeddingRequestTimeout time.Duration `envconfig:"DEDUPER_EMBEDDING_TIMEOUT" default:"45s"`
}

// ConfigError names the offending variable alongside the complaint.
type ConfigError struct {
	Variable string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Variable, e.Reason)
}

func configErr(variable, reason string) error {
	return &ConfigError{Variable: variable, Reason: reason}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseDir) == "" {
		return configErr("PATH_TO_DATABASE", "is required")
	}
	if strings.TrimSpace(c.DatabaseName) == "" {
		return configErr("NAME_DB", "is required")
	}
	positives := []struct {
		name  string
		value int
	}{
		{"DEDUPER_BATCH_SIZE_LOAD", c.BatchSizeLoad},
		{"DEDUPER_BATCH_SIZE_STATES", c.BatchSizeStates},
		{"DEDUPER_BATCH_SIZE_URL", c.BatchSizeURL},
		{"DEDUPER_BATCH_SIZE_CONTENT_HASH", c.BatchSizeContentHash},
		{"DEDUPER_BATCH_SIZE_EMBEDDING", c.BatchSizeEmbedding},
		{"DEDUPER_CACHE_MAX_ENTRIES", c.CacheMaxEntries},
		{"DEDUPER_CHECKPOINT_INTERVAL", c.CheckpointInterval},
		{"DEDUPER_EMBEDDING_DIMENSIONS", c.EmbeddingDimensions},
		{"DEDUPER_EMBEDDING_MAX_LENGTH", c.EmbeddingMaxLength},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return configErr(p.name, "must be > 0")
		}
	}
	if c.EmbeddingRequestTimeout <= 0 {
		return configErr("DEDUPER_EMBEDDING_TIMEOUT", "must be > 0")
	}
	return nil
}

// DatabasePath joins PATH_TO_DATABASE and NAME_DB into the SQLite file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DatabaseDir, c.DatabaseName)
}
