package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=spending-coach-dev sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 5, cfg.Analysis.MinCategorySamples)
	assert.InDelta(t, 10.0, cfg.Analysis.GrayChargeMax, 0.001)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("ANALYSIS_GRAY_CHARGE_MAX", "15")
	t.Setenv("ANALYSIS_MIN_CATEGORY_SAMPLES", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.InDelta(t, 15.0, cfg.Analysis.GrayChargeMax, 0.001)
	assert.Equal(t, 8, cfg.Analysis.MinCategorySamples)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}
