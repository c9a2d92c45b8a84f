package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/utakatalp/relegation-odds/internal/dataset"
	"github.com/utakatalp/relegation-odds/internal/league"
)

// Store wraps a Postgres connection holding a league snapshot: the current
// table in teams and the schedule in matches. Unplayed matches have NULL goals.
type Store struct {
	DB *sql.DB
}

// NewStore opens a Postgres connection using the given connection string.
func NewStore(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// verify early
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS teams (
        id            SERIAL PRIMARY KEY,
        name          TEXT    NOT NULL UNIQUE,
        played        INT     NOT NULL DEFAULT 0,
        points        INT     NOT NULL DEFAULT 0,
        goals_for     INT     NOT NULL DEFAULT 0,
        goals_against INT     NOT NULL DEFAULT 0,
        last_five     INT[]   NOT NULL DEFAULT '{}'
    );
    `,
		`CREATE TABLE IF NOT EXISTS matches (
		    id SERIAL PRIMARY KEY,
		    week INT NOT NULL,
		    home_team TEXT NOT NULL REFERENCES teams(name),
		    away_team TEXT NOT NULL REFERENCES teams(name),
		    home_goals INT,
		    away_goals INT
		);`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// SeedLeague replaces the stored snapshot with l in a single transaction.
func (s *Store) SeedLeague(ctx context.Context, l *dataset.League) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("deleting all matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return fmt.Errorf("deleting all teams: %w", err)
	}

	const insertTeam = `
    INSERT INTO teams (name, played, points, goals_for, goals_against, last_five)
    VALUES ($1, $2, $3, $4, $5, $6)
    `
	for _, t := range l.Teams {
		form := make([]int64, len(l.Form[t.Name]))
		for i, p := range l.Form[t.Name] {
			form[i] = int64(p)
		}
		if _, err := tx.ExecContext(ctx, insertTeam,
			t.Name, t.Played, t.Points, t.GoalsFor, t.GoalsAgainst, pq.Array(form),
		); err != nil {
			return fmt.Errorf("inserting team %s: %w", t.Name, err)
		}
	}

	const insertFixture = `
INSERT INTO matches (week, home_team, away_team)
VALUES ($1, $2, $3)
`
	for _, f := range l.Fixtures {
		if _, err := tx.ExecContext(ctx, insertFixture, f.Week, f.Home, f.Away); err != nil {
			return fmt.Errorf("inserting fixture %s vs %s: %w", f.Home, f.Away, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

// GetTeams returns the stored table and each team's last results.
func (s *Store) GetTeams(ctx context.Context) ([]league.Team, map[string][]int, error) {
	const q = `
        SELECT
            name,
            played,
            points,
            goals_for,
            goals_against,
            last_five
        FROM teams
        ORDER BY id
    `
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []league.Team
	form := make(map[string][]int)
	for rows.Next() {
		var (
			t    league.Team
			last pq.Int64Array
		)
		if err := rows.Scan(
			&t.Name,
			&t.Played,
			&t.Points,
			&t.GoalsFor,
			&t.GoalsAgainst,
			&last,
		); err != nil {
			return nil, nil, fmt.Errorf("scanning team row: %w", err)
		}
		results := make([]int, len(last))
		for i, p := range last {
			results[i] = int(p)
			t.LastFivePoints += int(p)
		}
		t.RecentGames = len(results)
		form[t.Name] = results
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating teams rows: %w", err)
	}
	return teams, form, nil
}

// RemainingFixtures returns the matches without a score, in week order.
func (s *Store) RemainingFixtures(ctx context.Context) ([]league.Fixture, error) {
	const q = `
SELECT week, home_team, away_team
FROM matches
WHERE home_goals IS NULL OR away_goals IS NULL
ORDER BY week, id;
`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []league.Fixture
	for rows.Next() {
		var f league.Fixture
		if err := rows.Scan(&f.Week, &f.Home, &f.Away); err != nil {
			return nil, fmt.Errorf("scanning fixture: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// PlayedMatches returns every scored match, in week order.
func (s *Store) PlayedMatches(ctx context.Context) ([]league.PlayedMatch, error) {
	const q = `
SELECT week, home_team, away_team, home_goals, away_goals
FROM matches
WHERE home_goals IS NOT NULL AND away_goals IS NOT NULL
ORDER BY week, id;
`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []league.PlayedMatch
	for rows.Next() {
		var m league.PlayedMatch
		if err := rows.Scan(&m.Week, &m.Home, &m.Away, &m.HomeGoals, &m.AwayGoals); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// LoadLeague assembles a snapshot from the database. Teams stored without
// last_five get their form from the scored matches; with none either, their
// form stays neutral.
func (s *Store) LoadLeague(ctx context.Context, name string) (*dataset.League, error) {
	teams, form, err := s.GetTeams(ctx)
	if err != nil {
		return nil, err
	}
	fixtures, err := s.RemainingFixtures(ctx)
	if err != nil {
		return nil, err
	}

	missing := false
	for _, t := range teams {
		if len(form[t.Name]) == 0 {
			missing = true
			break
		}
	}
	if missing {
		played, err := s.PlayedMatches(ctx)
		if err != nil {
			return nil, err
		}
		recent := league.RecentForm(played)
		for i, t := range teams {
			if len(form[t.Name]) > 0 {
				continue
			}
			form[t.Name] = recent[t.Name]
			teams[i].RecentGames = len(recent[t.Name])
			for _, p := range recent[t.Name] {
				teams[i].LastFivePoints += p
			}
		}
	}

	return &dataset.League{
		Name:     name,
		Teams:    teams,
		Form:     form,
		Fixtures: fixtures,
	}, nil
}
