// internal/league/logic.go
package league

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// MatchParams are the league-wide constants used to turn ratings into
// expected goals.
type MatchParams struct {
	AvgGoalsHome  float64 `json:"avg_goals_home"`
	AvgGoalsAway  float64 `json:"avg_goals_away"`
	HomeAdvantage float64 `json:"home_advantage"`
	// Chaos is the half-width of the uniform per-side multiplier.
	Chaos float64 `json:"chaos"`
	// MinExpectedGoals is the floor applied to every Poisson rate.
	MinExpectedGoals float64 `json:"min_expected_goals"`
}

// DefaultMatchParams returns Serie A-like constants.
func DefaultMatchParams() MatchParams {
	return MatchParams{
		AvgGoalsHome:     1.45,
		AvgGoalsAway:     1.15,
		HomeAdvantage:    1.15,
		Chaos:            0.2,
		MinExpectedGoals: 0.05,
	}
}

// Validate rejects parameters that would produce non-positive rates.
func (p MatchParams) Validate() error {
	switch {
	case p.AvgGoalsHome <= 0 || p.AvgGoalsAway <= 0:
		return NewInvalidInputf("average goals must be positive")
	case p.HomeAdvantage <= 0:
		return NewInvalidInputf("home advantage must be positive, got %g", p.HomeAdvantage)
	case p.Chaos < 0 || p.Chaos >= 1:
		return NewInvalidInputf("chaos must be in [0, 1), got %g", p.Chaos)
	case p.MinExpectedGoals <= 0:
		return NewInvalidInputf("min expected goals must be positive, got %g", p.MinExpectedGoals)
	}
	return nil
}

// ScoreLine formats the result as "Home 2 - 1 Away".
func (r MatchResult) ScoreLine(home, away string) string {
	return fmt.Sprintf("%s %d - %d %s", home, r.HomeGoals, r.AwayGoals, away)
}

// ExpectedGoals returns the Poisson rates for a fixture. Rates below
// p.MinExpectedGoals are raised to it and clamped is set.
func ExpectedGoals(home, away TeamRating, p MatchParams, chaosHome, chaosAway float64) (lambdaHome, lambdaAway float64, clamped bool) {
	lambdaHome = home.AdjustedAttack * away.AdjustedDefense * p.AvgGoalsHome * p.HomeAdvantage * chaosHome
	lambdaAway = away.AdjustedAttack * home.AdjustedDefense * p.AvgGoalsAway * chaosAway

	if !(lambdaHome >= p.MinExpectedGoals) {
		lambdaHome = p.MinExpectedGoals
		clamped = true
	}
	if !(lambdaAway >= p.MinExpectedGoals) {
		lambdaAway = p.MinExpectedGoals
		clamped = true
	}
	return lambdaHome, lambdaAway, clamped
}

// DrawScore samples both goal counts independently from src.
func DrawScore(lambdaHome, lambdaAway float64, src rand.Source) MatchResult {
	home := distuv.Poisson{Lambda: lambdaHome, Src: src}
	away := distuv.Poisson{Lambda: lambdaAway, Src: src}
	return MatchResult{
		HomeGoals: int(home.Rand()),
		AwayGoals: int(away.Rand()),
	}
}

// Sampler draws match results for one trial. It is not safe for
// concurrent use; every worker owns its own.
type Sampler struct {
	params  MatchParams
	src     rand.Source
	chaos   distuv.Uniform
	clamped int
}

// NewSampler returns a Sampler reading randomness from src.
func NewSampler(p MatchParams, src rand.Source) *Sampler {
	return &Sampler{
		params: p,
		src:    src,
		chaos:  distuv.Uniform{Min: 1 - p.Chaos, Max: 1 + p.Chaos, Src: src},
	}
}

// Sample simulates a single fixture between two rated teams.
func (s *Sampler) Sample(home, away TeamRating) MatchResult {
	chaosHome := s.chaos.Rand()
	chaosAway := s.chaos.Rand()

	lh, la, clamped := ExpectedGoals(home, away, s.params, chaosHome, chaosAway)
	if clamped {
		s.clamped++
	}
	return DrawScore(lh, la, s.src)
}

// Clamped returns how many fixtures needed the expected-goals floor.
func (s *Sampler) Clamped() int {
	return s.clamped
}
