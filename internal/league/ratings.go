package league

import (
	"gonum.org/v1/gonum/stat"
)

const (
	// formWindow is the number of recent matches the form multiplier looks at.
	formWindow = 5

	formFloor  = 0.7
	formWeight = 0.3
)

// LeagueAverages are per-game goal rates averaged over every team.
type LeagueAverages struct {
	GoalsScoredPerGame   float64 `json:"goals_scored_per_game"`
	GoalsConcededPerGame float64 `json:"goals_conceded_per_game"`
}

// TeamRating is a team's strength relative to the league average.
// Defense below 1.0 means the team concedes less than average.
type TeamRating struct {
	Team            string  `json:"team"`
	Attack          float64 `json:"attack"`
	Defense         float64 `json:"defense"`
	Form            float64 `json:"form"`
	AdjustedAttack  float64 `json:"adjusted_attack"`
	AdjustedDefense float64 `json:"adjusted_defense"`
}

// RatingOptions tweak how ratings are derived.
type RatingOptions struct {
	// IgnoreForm pins every form multiplier to 1.0.
	IgnoreForm bool
}

// Validate checks that a team's record can be turned into a rating.
func (t Team) Validate() error {
	if t.Name == "" {
		return NewInvalidInputf("team with empty name")
	}
	if t.Played <= 0 {
		return invalidTeam(t.Name, "games played must be positive, got %d", t.Played)
	}
	if t.Points < 0 || t.GoalsFor < 0 || t.GoalsAgainst < 0 {
		return invalidTeam(t.Name, "negative points or goals")
	}
	if t.Points > 3*t.Played {
		return invalidTeam(t.Name, "%d points from %d games", t.Points, t.Played)
	}
	if t.RecentGames < 0 || t.RecentGames > min(formWindow, t.Played) {
		return invalidTeam(t.Name, "%d recent games from %d played", t.RecentGames, t.Played)
	}
	if t.LastFivePoints < 0 || t.LastFivePoints > 3*t.RecentGames {
		return invalidTeam(t.Name, "last five points %d out of range for %d games", t.LastFivePoints, t.RecentGames)
	}
	return nil
}

// FormMultiplier blends recent and season points per game.
// A team without season points or recent results gets a neutral 1.0.
func (t Team) FormMultiplier() float64 {
	seasonPPG := float64(t.Points) / float64(t.Played)
	if seasonPPG == 0 || t.RecentGames == 0 {
		return 1.0
	}
	recentPPG := float64(t.LastFivePoints) / float64(t.RecentGames)
	return formFloor + formWeight*(recentPPG/seasonPPG)
}

// ComputeAverages returns the per-game goal rates across teams, weighted by
// games played: total goals over total games.
func ComputeAverages(teams []Team) (LeagueAverages, error) {
	if len(teams) == 0 {
		return LeagueAverages{}, NewInvalidInputf("no teams")
	}
	scored := make([]float64, len(teams))
	conceded := make([]float64, len(teams))
	played := make([]float64, len(teams))
	for i, t := range teams {
		if err := t.Validate(); err != nil {
			return LeagueAverages{}, err
		}
		scored[i] = float64(t.GoalsFor) / float64(t.Played)
		conceded[i] = float64(t.GoalsAgainst) / float64(t.Played)
		played[i] = float64(t.Played)
	}
	return LeagueAverages{
		GoalsScoredPerGame:   stat.Mean(scored, played),
		GoalsConcededPerGame: stat.Mean(conceded, played),
	}, nil
}

// ComputeRatings derives one rating per team, in the order given.
func ComputeRatings(teams []Team, opts RatingOptions) ([]TeamRating, LeagueAverages, error) {
	avg, err := ComputeAverages(teams)
	if err != nil {
		return nil, LeagueAverages{}, err
	}

	ratings := make([]TeamRating, len(teams))
	for i, t := range teams {
		att := relative(float64(t.GoalsFor)/float64(t.Played), avg.GoalsScoredPerGame)
		def := relative(float64(t.GoalsAgainst)/float64(t.Played), avg.GoalsConcededPerGame)

		form := 1.0
		if !opts.IgnoreForm {
			form = t.FormMultiplier()
		}

		ratings[i] = TeamRating{
			Team:            t.Name,
			Attack:          att,
			Defense:         def,
			Form:            form,
			AdjustedAttack:  att * form,
			AdjustedDefense: def / form,
		}
	}
	return ratings, avg, nil
}

// relative normalises a per-game rate. A league where nobody scored
// rates everyone as average.
func relative(rate, leagueRate float64) float64 {
	if leagueRate == 0 {
		return 1.0
	}
	return rate / leagueRate
}
