package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.Simulation.InitialCapital)
	assert.Equal(t, -0.01, cfg.Strategy.Entry.DropThreshold)
	assert.Equal(t, 0.90, cfg.Strategy.RollUp.TriggerDelta)
	assert.Equal(t, 300, cfg.Strategy.RollOut.TriggerDTE)
	assert.Equal(t, 52, cfg.Strategy.BearAdd.CooldownDays)
	assert.Equal(t, 0.99, cfg.Strategy.RollOut.CashSafety)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[simulation]
initial_capital = 250000.0
start_year = 2010
end_year = 2020

[strategy.entry]
drop_threshold = -0.02
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250000.0, cfg.Simulation.InitialCapital)
	assert.Equal(t, -0.02, cfg.Strategy.Entry.DropThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.80, cfg.Strategy.Entry.TargetDelta)
}

func TestValidateRejectsBadDelta(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Strategy.RollUp.TriggerDelta = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedYears(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Simulation.StartYear = 2020
	cfg.Simulation.EndYear = 2010
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrideDataPath(t *testing.T) {
	t.Setenv("LEAPS_DATA_CSV", "/tmp/other.csv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.csv", cfg.Data.CSVPath)
}
