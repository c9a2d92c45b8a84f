package odds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/relegation-odds/internal/league"
)

// ComparisonRow shows how recent form moves a team's relegation probability.
type ComparisonRow struct {
	Team     string  `json:"team"`
	Points   int     `json:"points"`
	Baseline float64 `json:"baseline"`
	WithForm float64 `json:"with_form"`
	Change   float64 `json:"change"`
}

// Comparison holds a pair of runs over the same trial seeds, one with the
// form multiplier pinned to 1.0 and one with it applied.
type Comparison struct {
	Baseline *Result         `json:"baseline"`
	WithForm *Result         `json:"with_form"`
	Rows     []ComparisonRow `json:"rows"`
}

// Compare runs the season twice, with and without form.
func Compare(ctx context.Context, season *league.Season, cfg Config, log logrus.FieldLogger) (*Comparison, error) {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	run := func(ignoreForm bool) (*Result, error) {
		c := cfg
		c.IgnoreForm = ignoreForm
		sim, err := New(season, c, log)
		if err != nil {
			return nil, err
		}
		return sim.Run(ctx)
	}

	baseline, err := run(true)
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}
	form, err := run(false)
	if err != nil {
		return nil, fmt.Errorf("form run: %w", err)
	}

	base := baseline.Probabilities()
	rows := make([]ComparisonRow, 0, len(form.Predictions))
	for _, p := range form.Predictions {
		rows = append(rows, ComparisonRow{
			Team:     p.Team,
			Points:   p.Points,
			Baseline: base[p.Team],
			WithForm: p.Probability,
			Change:   p.Probability - base[p.Team],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].WithForm > rows[j].WithForm
	})

	return &Comparison{Baseline: baseline, WithForm: form, Rows: rows}, nil
}
