// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/sqlsage-dev/sqlsage/internal/config"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.Endpoint)
	assert.Equal(t, "nomic-embed-text", cfg.LLM.EmbedModel)
	assert.Equal(t, 3, cfg.Synthesis.MaxAttempts)
	assert.Equal(t, 3, cfg.Synthesis.TopK)
	assert.Equal(t, 1, cfg.Miner.Workers)
	assert.Equal(t, 50, cfg.Miner.MinBlockLength)
	assert.NotEmpty(t, cfg.Miner.Topics)
	assert.Equal(t, 5, cfg.Trainer.PerLevel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlsage.yaml")
	content := []byte(`
llm:
  endpoint: http://10.0.0.7:11434/v1
  model: qwen2.5-coder:7b
synthesis:
  max_attempts: 5
miner:
  workers: 4
  topics:
    - "sql window functions"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.7:11434/v1", cfg.LLM.Endpoint)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Synthesis.MaxAttempts)
	assert.Equal(t, 4, cfg.Miner.Workers)
	assert.Equal(t, []string{"sql window functions"}, cfg.Miner.Topics)
	// Defaults still apply for untouched keys.
	assert.Equal(t, "nomic-embed-text", cfg.LLM.EmbedModel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeConfigLoadReadFailure, sageerr.CodeOf(err))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &config.Config{} // all zero values
	errs := cfg.Validate()
	// Every section should contribute at least one error.
	assert.GreaterOrEqual(t, len(errs), 8)
}

func TestValidateRejectsBadEndpoint(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("llm.endpoint", "not a url")

	_, err := config.FromViper(v)
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeConfigValidateInvalidValue, sageerr.CodeOf(err))
}

func TestValidateRejectsEmptyTopics(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Miner.Topics = nil
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "miner.topics")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SQLSAGE_LLM_MODEL", "codellama:13b")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "codellama:13b", cfg.LLM.Model)
}
