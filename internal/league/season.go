package league

import (
	"sort"
)

// PlayedMatch is a fixture together with its score.
type PlayedMatch struct {
	Fixture
	MatchResult
}

// Season is a validated league: the teams and the fixtures still to play,
// resolved to table indexes once so trials never look up names.
type Season struct {
	teams    []Team
	fixtures []Fixture
	index    map[string]int
	pairs    [][2]int
}

// NewSeason validates teams and fixtures. Every problem is reported as an
// *InvalidInputError naming the team or fixture at fault.
func NewSeason(teams []Team, fixtures []Fixture) (*Season, error) {
	if len(teams) < 2 {
		return nil, NewInvalidInputf("need at least two teams, got %d", len(teams))
	}

	s := &Season{
		teams:    append([]Team(nil), teams...),
		fixtures: append([]Fixture(nil), fixtures...),
		index:    make(map[string]int, len(teams)),
		pairs:    make([][2]int, 0, len(fixtures)),
	}
	for i, t := range teams {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[t.Name]; dup {
			return nil, invalidTeam(t.Name, "listed more than once")
		}
		s.index[t.Name] = i
	}

	for _, f := range fixtures {
		h, ok := s.index[f.Home]
		if !ok {
			return nil, invalidFixture(f, "unknown home team")
		}
		a, ok := s.index[f.Away]
		if !ok {
			return nil, invalidFixture(f, "unknown away team")
		}
		if h == a {
			return nil, invalidFixture(f, "team cannot play itself")
		}
		s.pairs = append(s.pairs, [2]int{h, a})
	}
	return s, nil
}

// Teams returns the teams in table-index order.
func (s *Season) Teams() []Team {
	return s.teams
}

// Fixtures returns the remaining fixtures.
func (s *Season) Fixtures() []Fixture {
	return s.fixtures
}

// Index returns the table index of a team.
func (s *Season) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Simulate plays every remaining fixture once and returns the ranked table.
// ratings must be aligned with Teams(). When fromTable is set the rows start
// from each team's current record instead of zero.
func (s *Season) Simulate(ratings []TeamRating, sampler *Sampler, fromTable bool) []TableEntry {
	return s.play(ratings, sampler, fromTable, nil)
}

// Play is Simulate that also returns every sampled score.
func (s *Season) Play(ratings []TeamRating, sampler *Sampler, fromTable bool) ([]PlayedMatch, []TableEntry) {
	played := make([]PlayedMatch, len(s.fixtures))
	table := s.play(ratings, sampler, fromTable, func(i int, r MatchResult) {
		played[i] = PlayedMatch{Fixture: s.fixtures[i], MatchResult: r}
	})
	return played, table
}

func (s *Season) play(ratings []TeamRating, sampler *Sampler, fromTable bool, record func(int, MatchResult)) []TableEntry {
	entries := make([]TableEntry, len(s.teams))
	for i, t := range s.teams {
		entries[i].Team = t.Name
		if fromTable {
			entries[i].Played = t.Played
			entries[i].Points = t.Points
			entries[i].GoalsFor = t.GoalsFor
			entries[i].GoalsAgainst = t.GoalsAgainst
			entries[i].GoalDiff = t.GoalsFor - t.GoalsAgainst
		}
	}

	for i, p := range s.pairs {
		r := sampler.Sample(ratings[p[0]], ratings[p[1]])
		entries[p[0]].record(r.HomeGoals, r.AwayGoals)
		entries[p[1]].record(r.AwayGoals, r.HomeGoals)
		if record != nil {
			record(i, r)
		}
	}

	Rank(entries)
	return entries
}

func (e *TableEntry) record(scored, conceded int) {
	e.Played++
	e.GoalsFor += scored
	e.GoalsAgainst += conceded
	e.GoalDiff = e.GoalsFor - e.GoalsAgainst

	switch {
	case scored > conceded:
		e.Wins++
		e.Points += 3
	case scored < conceded:
		e.Losses++
	default:
		e.Draws++
		e.Points++
	}
}

// Less reports whether a finishes above b: points, then goal difference,
// then goals scored, then team name.
func Less(a, b TableEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.GoalDiff != b.GoalDiff {
		return a.GoalDiff > b.GoalDiff
	}
	if a.GoalsFor != b.GoalsFor {
		return a.GoalsFor > b.GoalsFor
	}
	return a.Team < b.Team
}

// Rank sorts a table in place, top of the league first.
func Rank(entries []TableEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// Relegated returns the bottom k teams of a ranked table.
func Relegated(table []TableEntry, k int) []string {
	k = min(max(k, 0), len(table))
	out := make([]string, 0, k)
	for _, e := range table[len(table)-k:] {
		out = append(out, e.Team)
	}
	return out
}

// SafetyPoints returns the points of the highest team outside the bottom k,
// or 0 if every team is relegated.
func SafetyPoints(table []TableEntry, k int) int {
	i := len(table) - k - 1
	if i < 0 || i >= len(table) {
		return 0
	}
	return table[i].Points
}

// CalculateTable builds a ranked table from played matches.
func CalculateTable(matches []PlayedMatch) []TableEntry {
	entriesMap := make(map[string]*TableEntry)
	entryFor := func(name string) *TableEntry {
		e, ok := entriesMap[name]
		if !ok {
			e = &TableEntry{Team: name}
			entriesMap[name] = e
		}
		return e
	}
	for _, m := range matches {
		entryFor(m.Home).record(m.HomeGoals, m.AwayGoals)
		entryFor(m.Away).record(m.AwayGoals, m.HomeGoals)
	}

	entries := make([]TableEntry, 0, len(entriesMap))
	for _, e := range entriesMap {
		entries = append(entries, *e)
	}
	Rank(entries)
	return entries
}

// RecentForm returns each team's points from its last five matches, oldest
// first. Matches are taken in week order.
func RecentForm(matches []PlayedMatch) map[string][]int {
	ordered := append([]PlayedMatch(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Week < ordered[j].Week
	})

	form := make(map[string][]int)
	for _, m := range ordered {
		hp, ap := matchPoints(m.HomeGoals, m.AwayGoals)
		form[m.Home] = append(form[m.Home], hp)
		form[m.Away] = append(form[m.Away], ap)
	}
	for team, pts := range form {
		if len(pts) > formWindow {
			form[team] = pts[len(pts)-formWindow:]
		}
	}
	return form
}

// TeamsFromResults turns played matches into team records, ranked as in
// CalculateTable.
func TeamsFromResults(matches []PlayedMatch) []Team {
	form := RecentForm(matches)
	table := CalculateTable(matches)

	teams := make([]Team, len(table))
	for i, e := range table {
		last := 0
		for _, p := range form[e.Team] {
			last += p
		}
		teams[i] = Team{
			Name:           e.Team,
			Played:         e.Played,
			Points:         e.Points,
			GoalsFor:       e.GoalsFor,
			GoalsAgainst:   e.GoalsAgainst,
			LastFivePoints: last,
			RecentGames:    len(form[e.Team]),
		}
	}
	return teams
}

func matchPoints(home, away int) (int, int) {
	switch {
	case home > away:
		return 3, 0
	case home < away:
		return 0, 3
	default:
		return 1, 1
	}
}
