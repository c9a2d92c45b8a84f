// Package dataset reads league snapshots (current table, recent form and
// remaining fixtures) from YAML files.
package dataset

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/utakatalp/relegation-odds/internal/league"
)

//go:embed seriea_2025_26.yaml
var seriea []byte

// File is the on-disk layout of a league snapshot.
type File struct {
	Name  string       `yaml:"name"`
	Teams []TeamRecord `yaml:"teams"`
	// Fixtures left to play. When empty and RoundRobin is set, a full double
	// round-robin between all teams is generated instead.
	Fixtures   []league.Fixture `yaml:"fixtures"`
	RoundRobin bool             `yaml:"round_robin"`
	// Results, when given, replace Teams: records and form are computed
	// from the played matches.
	Results []ResultRecord `yaml:"results"`
}

// ResultRecord is a played match.
type ResultRecord struct {
	Week      int    `yaml:"week"`
	Home      string `yaml:"home"`
	Away      string `yaml:"away"`
	HomeGoals int    `yaml:"home_goals"`
	AwayGoals int    `yaml:"away_goals"`
}

// TeamRecord is one team as written in a snapshot file. LastFive lists the
// points of the most recent matches, oldest first.
type TeamRecord struct {
	Name         string `yaml:"name"`
	Played       int    `yaml:"played"`
	Points       int    `yaml:"points"`
	GoalsFor     int    `yaml:"goals_for"`
	GoalsAgainst int    `yaml:"goals_against"`
	LastFive     []int  `yaml:"last_five"`
}

// League is a parsed snapshot.
type League struct {
	Name     string
	Teams    []league.Team
	Form     map[string][]int
	Fixtures []league.Fixture
}

// Default returns the bundled Serie A 2025/26 snapshot.
func Default() (*League, error) {
	return Parse(seriea)
}

// Load reads a snapshot file.
func Load(path string) (*League, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes a snapshot and checks its form lists.
func Parse(data []byte) (*League, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	return f.League()
}

// League converts the file into domain types.
func (f File) League() (*League, error) {
	var (
		l   *League
		err error
	)
	if len(f.Results) > 0 {
		l, err = f.fromResults()
	} else {
		l, err = f.fromRecords()
	}
	if err != nil {
		return nil, err
	}

	l.Name = f.Name
	l.Fixtures = f.Fixtures
	if len(l.Fixtures) == 0 && f.RoundRobin {
		names := make([]string, len(l.Teams))
		for i, t := range l.Teams {
			names[i] = t.Name
		}
		l.Fixtures = league.Flatten(league.GenerateFullSeason(names))
	}
	return l, nil
}

func (f File) fromRecords() (*League, error) {
	l := &League{
		Teams: make([]league.Team, 0, len(f.Teams)),
		Form:  make(map[string][]int, len(f.Teams)),
	}
	for _, t := range f.Teams {
		if len(t.LastFive) > 5 {
			return nil, &league.InvalidInputError{Team: t.Name, Reason: fmt.Sprintf("last_five has %d entries", len(t.LastFive))}
		}
		sum := 0
		for _, p := range t.LastFive {
			if p != 0 && p != 1 && p != 3 {
				return nil, &league.InvalidInputError{Team: t.Name, Reason: fmt.Sprintf("last_five entry %d is not 0, 1 or 3", p)}
			}
			sum += p
		}
		l.Teams = append(l.Teams, league.Team{
			Name:           t.Name,
			Played:         t.Played,
			Points:         t.Points,
			GoalsFor:       t.GoalsFor,
			GoalsAgainst:   t.GoalsAgainst,
			LastFivePoints: sum,
			RecentGames:    len(t.LastFive),
		})
		l.Form[t.Name] = t.LastFive
	}
	return l, nil
}

func (f File) fromResults() (*League, error) {
	if len(f.Teams) > 0 {
		return nil, league.NewInvalidInputf("teams and results cannot both be set")
	}
	played := make([]league.PlayedMatch, len(f.Results))
	for i, r := range f.Results {
		if r.HomeGoals < 0 || r.AwayGoals < 0 {
			fx := league.Fixture{Home: r.Home, Away: r.Away, Week: r.Week}
			return nil, &league.InvalidInputError{Fixture: &fx, Reason: "negative score"}
		}
		played[i] = league.PlayedMatch{
			Fixture:     league.Fixture{Home: r.Home, Away: r.Away, Week: r.Week},
			MatchResult: league.MatchResult{HomeGoals: r.HomeGoals, AwayGoals: r.AwayGoals},
		}
	}
	return &League{
		Teams: league.TeamsFromResults(played),
		Form:  league.RecentForm(played),
	}, nil
}

// Season validates the snapshot for simulation.
func (l *League) Season() (*league.Season, error) {
	return league.NewSeason(l.Teams, l.Fixtures)
}

// SafeAbove lists teams with more than points points, sorted by name.
func (l *League) SafeAbove(points int) []string {
	var out []string
	for _, t := range l.Teams {
		if t.Points > points {
			out = append(out, t.Name)
		}
	}
	sort.Strings(out)
	return out
}

// FormString renders a team's recent results as W/D/L, oldest first.
func (l *League) FormString(team string) string {
	results, ok := l.Form[team]
	if !ok || len(results) == 0 {
		return "N/A"
	}
	parts := make([]string, len(results))
	for i, p := range results {
		switch p {
		case 3:
			parts[i] = "W"
		case 1:
			parts[i] = "D"
		default:
			parts[i] = "L"
		}
	}
	return strings.Join(parts, " ")
}

// Write encodes a league back into the file layout.
func (l *League) Write(path string) error {
	f := File{Name: l.Name, Fixtures: l.Fixtures}
	for _, t := range l.Teams {
		f.Teams = append(f.Teams, TeamRecord{
			Name:         t.Name,
			Played:       t.Played,
			Points:       t.Points,
			GoalsFor:     t.GoalsFor,
			GoalsAgainst: t.GoalsAgainst,
			LastFive:     l.Form[t.Name],
		})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
