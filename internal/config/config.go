// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package config

import (
	"errors"
	"net/url"
	"strings"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level sqlsage configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Miner     MinerConfig     `mapstructure:"miner"`
	Trainer   TrainerConfig   `mapstructure:"trainer"`
}

// LLMConfig holds the endpoint and model selection for the local
// OpenAI-compatible server (Ollama by default).
type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbedModel     string `mapstructure:"embed_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig selects where the knowledge base lives.
type StorageConfig struct {
	KnowledgeDB string `mapstructure:"knowledge_db"`
}

// EngineConfig points at the target DuckDB database.
type EngineConfig struct {
	Database string `mapstructure:"database"`
}

// SynthesisConfig bounds the generate-validate-retry loop.
type SynthesisConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	TopK        int `mapstructure:"top_k"`
}

// MinerConfig controls the acquisition worker pool.
type MinerConfig struct {
	Workers             int      `mapstructure:"workers"`
	MaxResults          int      `mapstructure:"max_results"`
	FetchTimeoutSeconds int      `mapstructure:"fetch_timeout_seconds"`
	QueueWaitSeconds    int      `mapstructure:"queue_wait_seconds"`
	MinBlockLength      int      `mapstructure:"min_block_length"`
	Topics              []string `mapstructure:"topics"`
}

// TrainerConfig controls curriculum self-training.
type TrainerConfig struct {
	Model          string `mapstructure:"model"`
	PerLevel       int    `mapstructure:"per_level"`
	MaxConsecutive int    `mapstructure:"max_consecutive_failures"`
}

// DefaultTopics seeds the miner's topic queue when the config names none.
var DefaultTopics = []string{
	"advanced sql joins e-commerce",
	"sql window functions usage examples",
	"recursive cte sql examples",
	"sql pivot table dynamic columns",
	"duckdb specific sql features",
	"sql lateral join examples",
	"cohort analysis sql query",
	"retention rate sql query",
	"market basket analysis sql",
}

// SetDefaults installs default values on v. Kept separate from Load so the
// CLI can install defaults before binding flags.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.endpoint", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "ollama")
	v.SetDefault("llm.model", "deepseek-coder:6.7b-base-q4_K_M")
	v.SetDefault("llm.embed_model", "nomic-embed-text")
	v.SetDefault("llm.timeout_seconds", 300)
	v.SetDefault("storage.knowledge_db", "data/knowledge.db")
	v.SetDefault("engine.database", "data/warehouse.duckdb")
	v.SetDefault("synthesis.max_attempts", 3)
	v.SetDefault("synthesis.top_k", 3)
	v.SetDefault("miner.workers", 1)
	v.SetDefault("miner.max_results", 3)
	v.SetDefault("miner.fetch_timeout_seconds", 10)
	v.SetDefault("miner.queue_wait_seconds", 5)
	v.SetDefault("miner.min_block_length", 50)
	v.SetDefault("miner.topics", DefaultTopics)
	v.SetDefault("trainer.model", "mistral:7b-instruct-q4_K_M")
	v.SetDefault("trainer.per_level", 5)
	v.SetDefault("trainer.max_consecutive_failures", 10)
}

// SetupEnv binds SQLSAGE_-prefixed environment variables, so e.g.
// SQLSAGE_LLM_ENDPOINT overrides llm.endpoint.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SQLSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sageerr.Errorf(sageerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sageerr.Errorf(sageerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// FromViper unmarshals and validates a populated viper instance. Used by the
// CLI, which owns the viper lifecycle for flag binding.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sageerr.Errorf(sageerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than stopping
// at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateSynthesis()...)
	errs = append(errs, c.validateMiner()...)
	errs = append(errs, c.validateTrainer()...)

	return errs
}

func (c *Config) validateLLM() []error {
	var errs []error

	if c.LLM.Endpoint == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: llm.endpoint must not be empty"))
	} else if u, err := url.Parse(c.LLM.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: llm.endpoint must be a valid URL, got %q", c.LLM.Endpoint))
	}

	if c.LLM.Model == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: llm.model must not be empty"))
	}

	if c.LLM.EmbedModel == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: llm.embed_model must not be empty"))
	}

	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: llm.timeout_seconds must be greater than 0, got %d", c.LLM.TimeoutSeconds))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.KnowledgeDB == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: storage.knowledge_db must not be empty"))
	}
	if c.Engine.Database == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: engine.database must not be empty"))
	}

	return errs
}

func (c *Config) validateSynthesis() []error {
	var errs []error

	if c.Synthesis.MaxAttempts <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: synthesis.max_attempts must be greater than 0, got %d", c.Synthesis.MaxAttempts))
	}
	if c.Synthesis.TopK <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: synthesis.top_k must be greater than 0, got %d", c.Synthesis.TopK))
	}

	return errs
}

func (c *Config) validateMiner() []error {
	var errs []error

	if c.Miner.Workers <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: miner.workers must be greater than 0, got %d", c.Miner.Workers))
	}
	if c.Miner.MaxResults <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: miner.max_results must be greater than 0, got %d", c.Miner.MaxResults))
	}
	if c.Miner.FetchTimeoutSeconds <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: miner.fetch_timeout_seconds must be greater than 0, got %d", c.Miner.FetchTimeoutSeconds))
	}
	if c.Miner.MinBlockLength < 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: miner.min_block_length must not be negative, got %d", c.Miner.MinBlockLength))
	}
	if len(c.Miner.Topics) == 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: miner.topics must name at least one topic"))
	}

	return errs
}

func (c *Config) validateTrainer() []error {
	var errs []error

	if c.Trainer.Model == "" {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: trainer.model must not be empty"))
	}
	if c.Trainer.PerLevel <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: trainer.per_level must be greater than 0, got %d", c.Trainer.PerLevel))
	}
	if c.Trainer.MaxConsecutive <= 0 {
		errs = append(errs, sageerr.Errorf(sageerr.CodeConfigValidateInvalidValue,
			"config: trainer.max_consecutive_failures must be greater than 0, got %d", c.Trainer.MaxConsecutive))
	}

	return errs
}
