package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/relegation-odds/internal/dataset"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
simulation:
  trials: 5000
  workers: 2
  seed: 7
  chaos: 0.1
  relegation_zone_size: 4
  excluded_teams:
    - Inter
    - Napoli
  include_form: false
  start_from_table: true

data:
  source: file
  path: ./league.yaml

server:
  addr: ":9090"
  read_timeout: 5s

logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5000, cfg.Simulation.Trials)
	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, []string{"Inter", "Napoli"}, cfg.Simulation.ExcludedTeams)
	assert.Equal(t, 1.15, cfg.Simulation.HomeAdvantage)
	assert.Equal(t, SourceFile, cfg.Data.Source)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)

	run := cfg.Odds()
	assert.Equal(t, 5000, run.Trials)
	assert.Equal(t, 4, run.RelegationZoneSize)
	assert.Equal(t, 0.1, run.Match.Chaos)
	assert.Equal(t, 1.45, run.Match.AvgGoalsHome)
	assert.True(t, run.IgnoreForm)
	assert.True(t, run.StartFromTable)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100000, cfg.Simulation.Trials)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, 3, cfg.Simulation.RelegationZoneSize)
	assert.Equal(t, 0.2, cfg.Simulation.Chaos)
	assert.True(t, cfg.Simulation.IncludeForm)
	assert.False(t, cfg.Simulation.StartFromTable)
	assert.Equal(t, 40, cfg.Simulation.ExcludeAbove)
	assert.Equal(t, SourceEmbedded, cfg.Data.Source)
	assert.Equal(t, 200000, cfg.Server.MaxTrials)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RELEGATION_SIMULATION_TRIALS", "1234")
	t.Setenv("RELEGATION_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Simulation.Trials)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"no trials", func(c *Config) { c.Simulation.Trials = 0 }, "simulation.trials"},
		{"negative workers", func(c *Config) { c.Simulation.Workers = -2 }, "simulation.workers"},
		{"empty zone", func(c *Config) { c.Simulation.RelegationZoneSize = 0 }, "relegation_zone_size"},
		{"exclude above below -1", func(c *Config) { c.Simulation.ExcludeAbove = -2 }, "simulation.exclude_above"},
		{"chaos out of range", func(c *Config) { c.Simulation.Chaos = 1 }, "chaos"},
		{"non-positive home advantage", func(c *Config) { c.Simulation.HomeAdvantage = 0 }, "home advantage"},
		{"unknown source", func(c *Config) { c.Data.Source = "csv" }, "data.source"},
		{"file without path", func(c *Config) { c.Data.Source = SourceFile }, "data.path"},
		{"postgres without dsn", func(c *Config) { c.Data.Source = SourcePostgres }, "data.postgres_dsn"},
		{"no server addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.msg)
		})
	}
}

func TestOddsFor_ExcludeAbove(t *testing.T) {
	l, err := dataset.Default()
	require.NoError(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Como", "Inter", "Juventus", "Milan", "Napoli", "Roma"}, cfg.OddsFor(l).Excluded)

	cfg.Simulation.ExcludedTeams = []string{"Lazio"}
	assert.Equal(t, []string{"Lazio", "Como", "Inter", "Juventus", "Milan", "Napoli", "Roma"}, cfg.OddsFor(l).Excluded)
	assert.Equal(t, []string{"Lazio"}, cfg.Simulation.ExcludedTeams)

	cfg.Simulation.ExcludeAbove = -1
	assert.Equal(t, []string{"Lazio"}, cfg.OddsFor(l).Excluded)
}

func TestLoad_ExcludeAboveFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "simulation:\n  exclude_above: -1\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	l, err := dataset.Default()
	require.NoError(t, err)
	assert.Empty(t, cfg.OddsFor(l).Excluded)
}
