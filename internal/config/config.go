package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/utakatalp/relegation-odds/internal/dataset"
	"github.com/utakatalp/relegation-odds/internal/league"
	"github.com/utakatalp/relegation-odds/internal/odds"
)

// Config represents the complete application configuration
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Data       DataConfig       `mapstructure:"data"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SimulationConfig holds the Monte Carlo run settings
type SimulationConfig struct {
	Trials             int      `mapstructure:"trials"`
	Workers            int      `mapstructure:"workers"`
	Seed               int64    `mapstructure:"seed"`
	HomeAdvantage      float64  `mapstructure:"home_advantage"`
	Chaos              float64  `mapstructure:"chaos"`
	RelegationZoneSize int      `mapstructure:"relegation_zone_size"`
	ExcludedTeams      []string `mapstructure:"excluded_teams"`
	ExcludeAbove       int      `mapstructure:"exclude_above"`
	AvgGoalsHome       float64  `mapstructure:"avg_goals_home"`
	AvgGoalsAway       float64  `mapstructure:"avg_goals_away"`
	MinExpectedGoals   float64  `mapstructure:"min_expected_goals"`
	IncludeForm        bool     `mapstructure:"include_form"`
	StartFromTable     bool     `mapstructure:"start_from_table"`
}

// DataConfig selects where the league snapshot comes from
type DataConfig struct {
	Source      string `mapstructure:"source"`
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxTrials    int           `mapstructure:"max_trials"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Data sources.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Load reads configuration from file and environment variables. An empty
// path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// RELEGATION_SIMULATION_TRIALS overrides simulation.trials
	v.SetEnvPrefix("RELEGATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	match := league.DefaultMatchParams()
	run := odds.DefaultConfig()

	v.SetDefault("simulation.trials", run.Trials)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.seed", run.Seed)
	v.SetDefault("simulation.home_advantage", match.HomeAdvantage)
	v.SetDefault("simulation.chaos", match.Chaos)
	v.SetDefault("simulation.relegation_zone_size", run.RelegationZoneSize)
	v.SetDefault("simulation.excluded_teams", []string{})
	v.SetDefault("simulation.exclude_above", 40)
	v.SetDefault("simulation.avg_goals_home", match.AvgGoalsHome)
	v.SetDefault("simulation.avg_goals_away", match.AvgGoalsAway)
	v.SetDefault("simulation.min_expected_goals", match.MinExpectedGoals)
	v.SetDefault("simulation.include_form", true)
	v.SetDefault("simulation.start_from_table", false)

	v.SetDefault("data.source", SourceEmbedded)
	v.SetDefault("data.path", "")
	v.SetDefault("data.postgres_dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_trials", 200000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "2m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid. Checks that need
// the league size (zone size against team count) happen in odds.New.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Trials < 1 {
		return fmt.Errorf("simulation.trials must be at least 1")
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	if s.RelegationZoneSize < 1 {
		return fmt.Errorf("simulation.relegation_zone_size must be at least 1")
	}
	if s.ExcludeAbove < -1 {
		return fmt.Errorf("simulation.exclude_above must be -1 (off) or a points total")
	}
	if err := c.Odds().Match.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	switch c.Data.Source {
	case SourceEmbedded:
	case SourceFile:
		if c.Data.Path == "" {
			return fmt.Errorf("data.path is required when data.source is file")
		}
	case SourcePostgres:
		if c.Data.PostgresDSN == "" {
			return fmt.Errorf("data.postgres_dsn is required when data.source is postgres")
		}
	default:
		return fmt.Errorf("data.source must be one of: embedded, file, postgres")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxTrials < 1 {
		return fmt.Errorf("server.max_trials must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Odds converts the simulation section into run settings.
func (c *Config) Odds() odds.Config {
	s := c.Simulation
	return odds.Config{
		Trials:             s.Trials,
		Workers:            s.Workers,
		Seed:               s.Seed,
		RelegationZoneSize: s.RelegationZoneSize,
		Match: league.MatchParams{
			AvgGoalsHome:     s.AvgGoalsHome,
			AvgGoalsAway:     s.AvgGoalsAway,
			HomeAdvantage:    s.HomeAdvantage,
			Chaos:            s.Chaos,
			MinExpectedGoals: s.MinExpectedGoals,
		},
		IgnoreForm:     !s.IncludeForm,
		StartFromTable: s.StartFromTable,
		Excluded:       append([]string(nil), s.ExcludedTeams...),
	}
}

// OddsFor is Odds plus the teams of l that exclude_above leaves out of the
// report. A negative threshold reports every team.
func (c *Config) OddsFor(l *dataset.League) odds.Config {
	run := c.Odds()
	if c.Simulation.ExcludeAbove >= 0 {
		run.Excluded = append(run.Excluded, l.SafeAbove(c.Simulation.ExcludeAbove)...)
	}
	return run
}
