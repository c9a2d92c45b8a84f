package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/relegation-odds/internal/api"
	"github.com/utakatalp/relegation-odds/internal/config"
	"github.com/utakatalp/relegation-odds/internal/dataset"
	"github.com/utakatalp/relegation-odds/internal/logger"
	"github.com/utakatalp/relegation-odds/internal/odds"
	"github.com/utakatalp/relegation-odds/internal/report"
	"github.com/utakatalp/relegation-odds/internal/store"
)

var (
	configPath   = flag.String("config", "", "Path to configuration file")
	dataPath     = flag.String("data", "", "League snapshot YAML; overrides data.source")
	trials       = flag.Int("trials", 0, "Number of simulated seasons")
	chaos        = flag.Float64("chaos", 0, "Half-width of the per-match chaos multiplier")
	seed         = flag.Int64("seed", 0, "Base seed; 0 uses the clock")
	workers      = flag.Int("workers", 0, "Parallel workers; 0 uses every CPU")
	zone         = flag.Int("zone", 0, "Relegation zone size")
	excludeAbove = flag.Int("exclude-above", 40, "Leave teams with more points than this out of the report; -1 reports every team")
	fromTable    = flag.Bool("from-table", false, "Start every trial from the current table")
	asJSON       = flag.Bool("json", false, "Print results as JSON")
	compare      = flag.Bool("compare", false, "Compare runs with and without recent form")
	preview      = flag.Bool("preview", false, "Print one sampled replay of the remaining fixtures")
	serve        = flag.Bool("serve", false, "Serve the HTTP API")
	seedDB       = flag.Bool("seed-db", false, "Write the snapshot into Postgres and exit")
	exportPath   = flag.String("export", "", "Write the loaded snapshot to a YAML file and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.WithError(err).Error("relegation run failed")
		stop()
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Data.Source = config.SourceFile
			cfg.Data.Path = *dataPath
		case "trials":
			cfg.Simulation.Trials = *trials
		case "chaos":
			cfg.Simulation.Chaos = *chaos
		case "seed":
			cfg.Simulation.Seed = *seed
		case "workers":
			cfg.Simulation.Workers = *workers
		case "zone":
			cfg.Simulation.RelegationZoneSize = *zone
		case "exclude-above":
			cfg.Simulation.ExcludeAbove = *excludeAbove
		case "from-table":
			cfg.Simulation.StartFromTable = *fromTable
		}
	})
}

func run(ctx context.Context, cfg *config.Config, lg *logrus.Logger) error {
	if *seedDB {
		return seedDatabase(ctx, cfg, lg)
	}

	l, err := loadLeague(ctx, cfg)
	if err != nil {
		return err
	}
	lg.WithFields(logrus.Fields{
		"league":   l.Name,
		"source":   cfg.Data.Source,
		"teams":    len(l.Teams),
		"fixtures": len(l.Fixtures),
	}).Info("league loaded")

	if *exportPath != "" {
		if err := l.Write(*exportPath); err != nil {
			return fmt.Errorf("exporting league: %w", err)
		}
		lg.WithField("path", *exportPath).Info("league exported")
		return nil
	}

	runCfg := cfg.OddsFor(l)

	if *serve {
		return serveAPI(ctx, cfg, l, runCfg, lg)
	}

	season, err := l.Season()
	if err != nil {
		return err
	}

	if *compare {
		cmp, err := odds.Compare(ctx, season, runCfg, lg)
		if err != nil {
			return err
		}
		if *asJSON {
			return report.WriteJSON(os.Stdout, cmp)
		}
		return report.WriteComparison(os.Stdout, cmp)
	}

	sim, err := odds.New(season, runCfg, lg)
	if err != nil {
		return err
	}

	if *preview {
		played, table := sim.Replay(0)
		return report.WriteSeason(os.Stdout, played, table, runCfg.RelegationZoneSize)
	}

	res, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return report.WriteJSON(os.Stdout, res)
	}
	return report.WriteTable(os.Stdout, res, l.FormString)
}

func loadLeague(ctx context.Context, cfg *config.Config) (*dataset.League, error) {
	switch cfg.Data.Source {
	case config.SourceFile:
		return dataset.Load(cfg.Data.Path)
	case config.SourcePostgres:
		s, err := store.NewStore(ctx, cfg.Data.PostgresDSN)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.LoadLeague(ctx, "postgres")
	default:
		return dataset.Default()
	}
}

// seedDatabase copies the embedded or file snapshot into Postgres.
func seedDatabase(ctx context.Context, cfg *config.Config, lg *logrus.Logger) error {
	if cfg.Data.PostgresDSN == "" {
		return errors.New("seed-db needs data.postgres_dsn")
	}

	var (
		l   *dataset.League
		err error
	)
	if cfg.Data.Source == config.SourceFile {
		l, err = dataset.Load(cfg.Data.Path)
	} else {
		l, err = dataset.Default()
	}
	if err != nil {
		return err
	}

	s, err := store.NewStore(ctx, cfg.Data.PostgresDSN)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.SeedLeague(ctx, l); err != nil {
		return err
	}
	lg.WithFields(logrus.Fields{
		"league":   l.Name,
		"teams":    len(l.Teams),
		"fixtures": len(l.Fixtures),
	}).Info("database seeded")
	return nil
}

func serveAPI(ctx context.Context, cfg *config.Config, l *dataset.League, runCfg odds.Config, lg *logrus.Logger) error {
	h, err := api.NewHandler(l, runCfg, cfg.Server.MaxTrials, lg)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.WithField("addr", cfg.Server.Addr).Info("serving relegation API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		lg.Info("Shutdown signal received, cleaning up...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
