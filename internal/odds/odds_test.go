package odds

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/relegation-odds/internal/league"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func identicalSeason(t *testing.T) *league.Season {
	t.Helper()
	var teams []league.Team
	for _, name := range []string{"Ancona", "Bari", "Como"} {
		teams = append(teams, league.Team{
			Name: name, Played: 10, GoalsFor: 15, GoalsAgainst: 15, Points: 15, LastFivePoints: 7, RecentGames: 5,
		})
	}
	fixtures := league.Flatten(league.GenerateFullSeason([]string{"Ancona", "Bari", "Como"}))
	season, err := league.NewSeason(teams, fixtures)
	require.NoError(t, err)
	return season
}

func mixedSeason(t *testing.T) *league.Season {
	t.Helper()
	teams := []league.Team{
		{Name: "Inter", Played: 24, Points: 58, GoalsFor: 57, GoalsAgainst: 19, LastFivePoints: 15, RecentGames: 5},
		{Name: "Lazio", Played: 24, Points: 33, GoalsFor: 26, GoalsAgainst: 23, LastFivePoints: 8, RecentGames: 5},
		{Name: "Lecce", Played: 24, Points: 21, GoalsFor: 15, GoalsAgainst: 31, LastFivePoints: 4, RecentGames: 5},
		{Name: "Pisa", Played: 24, Points: 15, GoalsFor: 19, GoalsAgainst: 40, LastFivePoints: 3, RecentGames: 5},
		{Name: "Verona", Played: 24, Points: 15, GoalsFor: 18, GoalsAgainst: 41, LastFivePoints: 2, RecentGames: 5},
	}
	names := make([]string, len(teams))
	for i, tm := range teams {
		names[i] = tm.Name
	}
	season, err := league.NewSeason(teams, league.Flatten(league.GenerateFullSeason(names)))
	require.NoError(t, err)
	return season
}

func testConfig(trials int) Config {
	cfg := DefaultConfig()
	cfg.Trials = trials
	cfg.Workers = 4
	cfg.Seed = 42
	return cfg
}

func TestRun_SymmetricTeams(t *testing.T) {
	cfg := testConfig(1000)
	cfg.RelegationZoneSize = 1
	cfg.Match.Chaos = 0

	sim, err := New(identicalSeason(t), cfg, quietLogger())
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Trials)
	require.Len(t, res.Predictions, 3)

	total := 0
	for _, p := range res.Predictions {
		assert.InDelta(t, 100.0/3.0, p.Probability, 8.0, p.Team)
		total += p.Relegations
	}
	assert.Equal(t, 1000, total)
}

func TestRun_ProbabilitiesUseTrialDenominator(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(777), quietLogger())
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 777, res.Trials)
	assert.Equal(t, 777, res.Tally.Trials)
	relegations := 0
	for _, p := range res.Predictions {
		assert.InDelta(t, float64(p.Relegations)/777*100, p.Probability, 1e-9)
		assert.GreaterOrEqual(t, p.Probability, 0.0)
		assert.LessOrEqual(t, p.Probability, 100.0)
		relegations += p.Relegations
	}
	assert.Equal(t, 777*3, relegations)

	for i := 1; i < len(res.Predictions); i++ {
		assert.GreaterOrEqual(t, res.Predictions[i-1].Probability, res.Predictions[i].Probability)
	}
	assert.Equal(t, "Inter", res.Predictions[len(res.Predictions)-1].Team)
	assert.Greater(t, res.SafetyPoints, 0.0)
}

func TestRun_WorkerCountDoesNotChangeCounts(t *testing.T) {
	season := mixedSeason(t)

	var tallies []Tally
	for _, workers := range []int{1, 3, 8} {
		cfg := testConfig(500)
		cfg.Workers = workers
		sim, err := New(season, cfg, quietLogger())
		require.NoError(t, err)

		res, err := sim.Run(context.Background())
		require.NoError(t, err)
		tallies = append(tallies, res.Tally)
	}

	assert.Equal(t, tallies[0].Relegations, tallies[1].Relegations)
	assert.Equal(t, tallies[0].Relegations, tallies[2].Relegations)
	assert.Equal(t, tallies[0].Points, tallies[2].Points)
	assert.Equal(t, tallies[0].SafetyPoints, tallies[2].SafetyPoints)
}

func TestRunRange_MergeOrderIndependent(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(300), quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	whole, err := sim.RunRange(ctx, 0, 300)
	require.NoError(t, err)

	a, err := sim.RunRange(ctx, 0, 70)
	require.NoError(t, err)
	b, err := sim.RunRange(ctx, 70, 201)
	require.NoError(t, err)
	c, err := sim.RunRange(ctx, 201, 300)
	require.NoError(t, err)

	var forward, backward Tally
	forward.Merge(a)
	forward.Merge(b)
	forward.Merge(c)
	backward.Merge(c)
	backward.Merge(a)
	backward.Merge(b)

	assert.Equal(t, whole.Relegations, forward.Relegations)
	assert.Equal(t, whole.Relegations, backward.Relegations)
	assert.Equal(t, whole.Points, backward.Points)
	assert.Equal(t, 300, forward.Trials)
}

func TestRunRange_ExtendingTrialsNeverLowersCounts(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(400), quietLogger())
	require.NoError(t, err)
	ctx := context.Background()

	prev, err := sim.RunRange(ctx, 0, 50)
	require.NoError(t, err)
	for _, hi := range []int{100, 200, 400} {
		next, err := sim.RunRange(ctx, 0, hi)
		require.NoError(t, err)
		for i := range prev.Relegations {
			assert.GreaterOrEqual(t, next.Relegations[i], prev.Relegations[i])
		}
		prev = next
	}
}

func TestRun_SingleTrialIsReproducible(t *testing.T) {
	cfg := testConfig(1)
	cfg.Match.Chaos = 0
	season := mixedSeason(t)

	first, err := New(season, cfg, quietLogger())
	require.NoError(t, err)
	second, err := New(season, cfg, quietLogger())
	require.NoError(t, err)

	a, err := first.Run(context.Background())
	require.NoError(t, err)
	b, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, a.Workers)
	assert.Equal(t, a.Tally, b.Tally)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestReplay_MatchesRunRange(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(50), quietLogger())
	require.NoError(t, err)
	season := sim.season

	for _, trial := range []int{0, 17, 49} {
		tally, err := sim.RunRange(context.Background(), trial, trial+1)
		require.NoError(t, err)

		played, table := sim.Replay(trial)
		assert.Len(t, played, len(season.Fixtures()))

		for _, name := range league.Relegated(table, 3) {
			i, ok := season.Index(name)
			require.True(t, ok)
			assert.Equal(t, 1, tally.Relegations[i], "trial %d %s", trial, name)
		}
		for _, e := range table {
			i, _ := season.Index(e.Team)
			assert.Equal(t, int64(e.Points), tally.Points[i])
		}
	}
}

func TestRun_CountsClampedFixtures(t *testing.T) {
	cfg := testConfig(20)
	cfg.RelegationZoneSize = 1
	cfg.Match.MinExpectedGoals = 25

	season := identicalSeason(t)
	sim, err := New(season, cfg, quietLogger())
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(20*len(season.Fixtures())), res.ClampedFixtures)

	cfg.Match.MinExpectedGoals = league.DefaultMatchParams().MinExpectedGoals
	sim, err = New(season, cfg, quietLogger())
	require.NoError(t, err)
	res, err = sim.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ClampedFixtures)
}

func TestRun_WorkerFailureIsFatal(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(400), quietLogger())
	require.NoError(t, err)
	sim.trialHook = func(trial int) {
		if trial == 57 {
			panic("boom")
		}
	}

	res, err := sim.Run(context.Background())
	assert.Nil(t, res)

	var failure *league.WorkerFailureError
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 0, failure.Worker)
	assert.Equal(t, 0, failure.Lo)
	assert.Equal(t, 100, failure.Hi)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_Cancelled(t *testing.T) {
	sim, err := New(mixedSeason(t), testConfig(1000), quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := sim.Run(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ExcludedTeamsStillSimulated(t *testing.T) {
	cfg := testConfig(200)
	cfg.Excluded = []string{"Inter", "Lazio"}

	sim, err := New(mixedSeason(t), cfg, quietLogger())
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Predictions, 3)
	probs := res.Probabilities()
	assert.NotContains(t, probs, "Inter")
	assert.NotContains(t, probs, "Lazio")

	full, err := New(mixedSeason(t), testConfig(200), quietLogger())
	require.NoError(t, err)
	fullRes, err := full.Run(context.Background())
	require.NoError(t, err)
	for team, p := range probs {
		assert.Equal(t, fullRes.Probabilities()[team], p, team)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	season := mixedSeason(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no trials", func(c *Config) { c.Trials = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zone too big", func(c *Config) { c.RelegationZoneSize = 5 }},
		{"empty zone", func(c *Config) { c.RelegationZoneSize = 0 }},
		{"bad chaos", func(c *Config) { c.Match.Chaos = 1.5 }},
		{"unknown excluded team", func(c *Config) { c.Excluded = []string{"Ghost"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(10)
			tt.mutate(&cfg)
			_, err := New(season, cfg, quietLogger())

			var invalid *league.InvalidInputError
			assert.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestNew_TimeSeedWhenZero(t *testing.T) {
	cfg := testConfig(10)
	cfg.Seed = 0
	sim, err := New(mixedSeason(t), cfg, nil)
	require.NoError(t, err)
	assert.NotZero(t, sim.Seed())
}

func TestSplit(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, split(10, 3))
	assert.Equal(t, [][2]int{{0, 1}}, split(1, 1))

	covered := 0
	for _, r := range split(100001, 7) {
		assert.Equal(t, covered, r[0])
		covered = r[1]
	}
	assert.Equal(t, 100001, covered)
}

func TestCompare(t *testing.T) {
	cmp, err := Compare(context.Background(), mixedSeason(t), testConfig(300), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, cmp.Baseline.Seed, cmp.WithForm.Seed)
	require.Len(t, cmp.Rows, 5)
	for _, row := range cmp.Rows {
		assert.InDelta(t, row.WithForm-row.Baseline, row.Change, 1e-9)
	}
	for _, r := range cmp.Baseline.Ratings {
		assert.Equal(t, 1.0, r.Form)
	}
}
