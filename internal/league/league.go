package league

// Prediction is one row of a finished run: how often a team ended in the
// relegation zone across all trials.
type Prediction struct {
	Team          string  `json:"team"`
	Points        int     `json:"points"`
	Relegations   int     `json:"relegations"`
	Probability   float64 `json:"probability"`
	AveragePoints float64 `json:"average_points"`
}

// Team represents a club's season so far.
type Team struct {
	Name           string `json:"name" yaml:"name"`
	Played         int    `json:"played" yaml:"played"`
	Points         int    `json:"points" yaml:"points"`
	GoalsFor       int    `json:"goals_for" yaml:"goals_for"`
	GoalsAgainst   int    `json:"goals_against" yaml:"goals_against"`
	LastFivePoints int    `json:"last_five_points" yaml:"last_five_points"`
	// RecentGames is how many matches LastFivePoints covers, at most five.
	// Zero means no recent results are known.
	RecentGames int `json:"recent_games" yaml:"recent_games"`
}

// Fixture is a remaining pairing between two teams.
type Fixture struct {
	Home string `json:"home" yaml:"home"`
	Away string `json:"away" yaml:"away"`
	Week int    `json:"week,omitempty" yaml:"week,omitempty"`
}

// MatchResult is the sampled score of one fixture.
type MatchResult struct {
	HomeGoals, AwayGoals int
}

// TableEntry holds the standings info for one team.
type TableEntry struct {
	Team                        string
	Played, Wins, Draws, Losses int
	GoalsFor, GoalsAgainst      int
	GoalDiff, Points            int
}
