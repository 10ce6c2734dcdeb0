package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("FRONTIER_DATA_DIR", tmpDir)
	t.Setenv("FRONTIER_PORT", "")
	t.Setenv("RISK_FREE_RATE", "")
	t.Setenv("DEFAULT_MAX_WEIGHT", "")
	t.Setenv("OPTIMIZER_WORKERS", "")
	t.Setenv("RISK_FREE_SERIES", "")
	t.Setenv("HISTORY_DB_PROFILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.0, cfg.RiskFreeRate)
	assert.Equal(t, "GS10", cfg.RiskFreeSeries)
	assert.Equal(t, 0.5, cfg.DefaultMaxWeight)
	assert.Equal(t, 4, cfg.OptimizerWorkers)
	assert.Equal(t, filepath.Join(absPath, "history.db"), cfg.HistoryDBPath())
	assert.Equal(t, database.ProfileStandard, cfg.HistoryDBProfileValue())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())
	t.Setenv("FRONTIER_PORT", "9090")
	t.Setenv("RISK_FREE_RATE", "0.0425")
	t.Setenv("DEFAULT_MAX_WEIGHT", "0.35")
	t.Setenv("OPTIMIZER_WORKERS", "8")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("HISTORY_DB_PROFILE", "cache")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.InDelta(t, 0.0425, cfg.RiskFreeRate, 1e-12)
	assert.InDelta(t, 0.35, cfg.DefaultMaxWeight, 1e-12)
	assert.Equal(t, 8, cfg.OptimizerWorkers)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, database.ProfileCache, cfg.HistoryDBProfileValue())
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())
	t.Setenv("FRONTIER_PORT", "not-a-port")
	t.Setenv("DEFAULT_MAX_WEIGHT", "half")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.5, cfg.DefaultMaxWeight)
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8080, DefaultMaxWeight: 0.5, OptimizerWorkers: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = 0 }, "FRONTIER_PORT"},
		{"max weight zero", func(c *Config) { c.DefaultMaxWeight = 0 }, "DEFAULT_MAX_WEIGHT"},
		{"max weight above one", func(c *Config) { c.DefaultMaxWeight = 1.5 }, "DEFAULT_MAX_WEIGHT"},
		{"workers", func(c *Config) { c.OptimizerWorkers = 0 }, "OPTIMIZER_WORKERS"},
		{"history profile", func(c *Config) { c.HistoryDBProfile = "turbo" }, "HISTORY_DB_PROFILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidMaxWeightFails(t *testing.T) {
	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())
	t.Setenv("DEFAULT_MAX_WEIGHT", "1.2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_MAX_WEIGHT")
}
