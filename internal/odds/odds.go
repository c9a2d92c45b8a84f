// Package odds runs the Monte Carlo trials and turns relegation counts into
// probabilities.
package odds

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/utakatalp/relegation-odds/internal/league"
)

// ctxCheckEvery is how many trials a worker runs between cancellation checks.
const ctxCheckEvery = 256

// Config controls one simulation run.
type Config struct {
	Trials             int
	Workers            int
	Seed               int64
	RelegationZoneSize int
	Match              league.MatchParams
	IgnoreForm         bool
	StartFromTable     bool
	Excluded           []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Trials:             100000,
		Seed:               42,
		RelegationZoneSize: 3,
		Match:              league.DefaultMatchParams(),
	}
}

// Validate checks the run settings against a league of n teams.
func (c Config) Validate(n int) error {
	if c.Trials < 1 {
		return league.NewInvalidInputf("trials must be at least 1, got %d", c.Trials)
	}
	if c.Workers < 0 {
		return league.NewInvalidInputf("workers must not be negative, got %d", c.Workers)
	}
	if c.RelegationZoneSize < 1 || c.RelegationZoneSize >= n {
		return league.NewInvalidInputf("relegation zone size must be in [1, %d], got %d", n-1, c.RelegationZoneSize)
	}
	return c.Match.Validate()
}

// Tally is the partial outcome of a contiguous range of trials, indexed by
// table position in the season.
type Tally struct {
	Trials       int
	Relegations  []int
	Points       []int64
	SafetyPoints int64
	Clamped      int64
}

func newTally(teams int) Tally {
	return Tally{
		Relegations: make([]int, teams),
		Points:      make([]int64, teams),
	}
}

// Merge adds o into t. Merging is order independent.
func (t *Tally) Merge(o Tally) {
	if t.Relegations == nil {
		t.Relegations = make([]int, len(o.Relegations))
		t.Points = make([]int64, len(o.Points))
	}
	t.Trials += o.Trials
	for i, c := range o.Relegations {
		t.Relegations[i] += c
	}
	for i, p := range o.Points {
		t.Points[i] += p
	}
	t.SafetyPoints += o.SafetyPoints
	t.Clamped += o.Clamped
}

// Result is the aggregate of a complete run.
type Result struct {
	RunID           uuid.UUID             `json:"run_id"`
	Trials          int                   `json:"trials"`
	Workers         int                   `json:"workers"`
	Seed            int64                 `json:"seed"`
	ZoneSize        int                   `json:"relegation_zone_size"`
	Predictions     []league.Prediction   `json:"predictions"`
	Ratings         []league.TeamRating   `json:"ratings"`
	Averages        league.LeagueAverages `json:"league_averages"`
	SafetyPoints    float64               `json:"average_safety_points"`
	ClampedFixtures int64                 `json:"clamped_fixtures"`
	Elapsed         time.Duration         `json:"elapsed"`
	Tally           Tally                 `json:"-"`
}

// Probabilities maps each reported team to its relegation probability.
func (r *Result) Probabilities() map[string]float64 {
	out := make(map[string]float64, len(r.Predictions))
	for _, p := range r.Predictions {
		out[p.Team] = p.Probability
	}
	return out
}

// Simulator replays a season many times with fixed ratings.
type Simulator struct {
	season   *league.Season
	ratings  []league.TeamRating
	averages league.LeagueAverages
	cfg      Config
	excluded map[string]bool
	log      logrus.FieldLogger

	// trialHook runs before every trial; tests use it to inject failures.
	trialHook func(trial int)
}

// New rates the season's teams and prepares a run. Bad settings or team data
// fail here, before any trial starts.
func New(season *league.Season, cfg Config, log logrus.FieldLogger) (*Simulator, error) {
	teams := season.Teams()
	if err := cfg.Validate(len(teams)); err != nil {
		return nil, err
	}

	ratings, avg, err := league.ComputeRatings(teams, league.RatingOptions{IgnoreForm: cfg.IgnoreForm})
	if err != nil {
		return nil, fmt.Errorf("computing ratings: %w", err)
	}

	excluded := make(map[string]bool, len(cfg.Excluded))
	for _, name := range cfg.Excluded {
		if _, ok := season.Index(name); !ok {
			return nil, &league.InvalidInputError{Team: name, Reason: "excluded team is not in the league"}
		}
		excluded[name] = true
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}

	return &Simulator{
		season:   season,
		ratings:  ratings,
		averages: avg,
		cfg:      cfg,
		excluded: excluded,
		log:      log,
	}, nil
}

// Ratings returns the ratings used by every trial.
func (s *Simulator) Ratings() []league.TeamRating {
	return s.ratings
}

// Seed returns the base seed; trial i is seeded with Seed()+i.
func (s *Simulator) Seed() int64 {
	return s.cfg.Seed
}

// RunRange runs trials [lo, hi) sequentially. The outcome of a trial depends
// only on its index, so ranges can be split and merged freely.
func (s *Simulator) RunRange(ctx context.Context, lo, hi int) (Tally, error) {
	tally := newTally(len(s.ratings))
	src := &rand.PCGSource{}
	sampler := league.NewSampler(s.cfg.Match, src)
	k := s.cfg.RelegationZoneSize

	for trial := lo; trial < hi; trial++ {
		if (trial-lo)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Tally{}, err
			}
		}
		if s.trialHook != nil {
			s.trialHook(trial)
		}

		src.Seed(uint64(s.cfg.Seed) + uint64(trial))
		table := s.season.Simulate(s.ratings, sampler, s.cfg.StartFromTable)

		for _, name := range league.Relegated(table, k) {
			i, _ := s.season.Index(name)
			tally.Relegations[i]++
		}
		for _, e := range table {
			i, _ := s.season.Index(e.Team)
			tally.Points[i] += int64(e.Points)
		}
		tally.SafetyPoints += int64(league.SafetyPoints(table, k))
		tally.Trials++
	}
	tally.Clamped = int64(sampler.Clamped())
	return tally, nil
}

// Replay plays a single trial again and returns its scores and final table.
// It draws exactly what trial did inside Run.
func (s *Simulator) Replay(trial int) ([]league.PlayedMatch, []league.TableEntry) {
	src := &rand.PCGSource{}
	src.Seed(uint64(s.cfg.Seed) + uint64(trial))
	return s.season.Play(s.ratings, league.NewSampler(s.cfg.Match, src), s.cfg.StartFromTable)
}

// Run fans the configured trials out over the workers and merges their tallies
// once all of them are done. A failed worker fails the whole run.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.New()
	ranges := split(s.cfg.Trials, s.workers())

	log := s.log.WithFields(logrus.Fields{
		"run_id":  runID.String(),
		"trials":  s.cfg.Trials,
		"workers": len(ranges),
		"seed":    s.cfg.Seed,
	})
	log.Info("starting relegation simulation")

	partials := make([]Tally, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		w, lo, hi := w, r[0], r[1]
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = &league.WorkerFailureError{Worker: w, Lo: lo, Hi: hi, Cause: fmt.Errorf("panic: %v", rec)}
				}
			}()
			t, err := s.RunRange(gctx, lo, hi)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return &league.WorkerFailureError{Worker: w, Lo: lo, Hi: hi, Cause: err}
			}
			partials[w] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("simulation aborted, discarding partial counts")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var total Tally
	for _, p := range partials {
		total.Merge(p)
	}
	if total.Trials != s.cfg.Trials {
		return nil, fmt.Errorf("ran %d trials, expected %d", total.Trials, s.cfg.Trials)
	}

	res := s.result(total)
	res.RunID = runID
	res.Workers = len(ranges)
	res.Elapsed = time.Since(start)

	if res.ClampedFixtures > 0 {
		log.WithField("clamped_fixtures", res.ClampedFixtures).Warn("expected goals raised to the configured floor")
	}
	log.WithField("elapsed", res.Elapsed).Info("simulation finished")
	return res, nil
}

func (s *Simulator) result(total Tally) *Result {
	teams := s.season.Teams()
	n := float64(total.Trials)

	preds := make([]league.Prediction, 0, len(teams))
	for i, t := range teams {
		if s.excluded[t.Name] {
			continue
		}
		count := total.Relegations[i]
		preds = append(preds, league.Prediction{
			Team:          t.Name,
			Points:        t.Points,
			Relegations:   count,
			Probability:   float64(count) / n * 100.0,
			AveragePoints: float64(total.Points[i]) / n,
		})
	}

	// Sort descending by probability
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Probability != preds[j].Probability {
			return preds[i].Probability > preds[j].Probability
		}
		return preds[i].Team < preds[j].Team
	})

	return &Result{
		Trials:          total.Trials,
		Seed:            s.cfg.Seed,
		ZoneSize:        s.cfg.RelegationZoneSize,
		Predictions:     preds,
		Ratings:         s.ratings,
		Averages:        s.averages,
		SafetyPoints:    float64(total.SafetyPoints) / n,
		ClampedFixtures: total.Clamped,
		Tally:           total,
	}
}

func (s *Simulator) workers() int {
	w := s.cfg.Workers
	if w == 0 {
		w = runtime.NumCPU()
	}
	return min(w, s.cfg.Trials)
}

// split divides [0, trials) into n contiguous ranges whose sizes differ by at most one.
func split(trials, n int) [][2]int {
	ranges := make([][2]int, 0, n)
	per, extra := trials/n, trials%n
	lo := 0
	for i := 0; i < n; i++ {
		size := per
		if i < extra {
			size++
		}
		ranges = append(ranges, [2]int{lo, lo + size})
		lo += size
	}
	return ranges
}
