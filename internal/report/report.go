// Package report renders run results for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/utakatalp/relegation-odds/internal/league"
	"github.com/utakatalp/relegation-odds/internal/odds"
)

// Risk is a coarse label for a relegation probability.
type Risk string

const (
	Critical Risk = "CRITICAL"
	HighRisk Risk = "HIGH RISK"
	AtRisk   Risk = "AT RISK"
	Unsafe   Risk = "UNSAFE"
	Safe     Risk = "SAFE"
)

// hideBelow is the probability (in percent) under which comparison rows are
// left out when both runs agree the team is safe.
const hideBelow = 0.01

// RiskFor maps a probability in [0, 100] to its band.
func RiskFor(probability float64) Risk {
	switch {
	case probability > 90:
		return Critical
	case probability > 50:
		return HighRisk
	case probability > 20:
		return AtRisk
	case probability > 5:
		return Unsafe
	default:
		return Safe
	}
}

// FormFunc renders a team's recent results; nil disables the column.
type FormFunc func(team string) string

func newTab(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteTable prints one run, most endangered team first.
func WriteTable(w io.Writer, res *odds.Result, form FormFunc) error {
	fmt.Fprintf(w, "Relegation probabilities over %s trials (seed %d, bottom %d go down)\n",
		humanize.Comma(int64(res.Trials)), res.Seed, res.ZoneSize)

	tw := newTab(w)
	header := "TEAM\tPTS\tAVG PTS\tRELEGATED\tPROB\tSTATUS"
	if form != nil {
		header += "\tFORM"
	}
	fmt.Fprintln(tw, header)
	for _, p := range res.Predictions {
		line := fmt.Sprintf("%s\t%d\t%.1f\t%s\t%.2f%%\t%s",
			p.Team, p.Points, p.AveragePoints, humanize.Comma(int64(p.Relegations)), p.Probability, RiskFor(p.Probability))
		if form != nil {
			line += "\t" + form(p.Team)
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Average points needed to stay up: %.1f\n", res.SafetyPoints)
	if res.ClampedFixtures > 0 {
		fmt.Fprintf(w, "Fixtures that needed the expected-goals floor: %s\n", humanize.Comma(res.ClampedFixtures))
	}
	fmt.Fprintf(w, "Finished in %s with %d workers\n", res.Elapsed.Round(time.Millisecond), res.Workers)
	return nil
}

// WriteComparison prints baseline and form probabilities side by side.
// Teams both runs consider safe are omitted.
func WriteComparison(w io.Writer, cmp *odds.Comparison) error {
	fmt.Fprintf(w, "Relegation probabilities over %s trials, baseline vs form\n",
		humanize.Comma(int64(cmp.WithForm.Trials)))

	tw := newTab(w)
	fmt.Fprintln(tw, "TEAM\tPTS\tBASELINE\tWITH FORM\tCHANGE\tSTATUS")
	for _, r := range cmp.Rows {
		if r.Baseline <= hideBelow && r.WithForm <= hideBelow {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t%.2f%%\t%+.2f%%\t%s\n",
			r.Team, r.Points, r.Baseline, r.WithForm, r.Change, RiskFor(r.WithForm))
	}
	return tw.Flush()
}

// WriteSeason prints one sampled replay of the remaining fixtures, week by
// week, followed by the resulting table.
func WriteSeason(w io.Writer, played []league.PlayedMatch, table []league.TableEntry, zone int) error {
	week := -1
	for _, m := range played {
		if m.Week != week {
			week = m.Week
			fmt.Fprintf(w, "Week %d:\n", week)
		}
		fmt.Fprintf(w, "  %s\n", m.ScoreLine(m.Home, m.Away))
	}
	fmt.Fprintln(w)

	tw := newTab(w)
	fmt.Fprintln(tw, "#\tTeam\tP\tW\tD\tL\tGF\tGA\tGD\tPts")
	for i, e := range table {
		if i == len(table)-zone {
			fmt.Fprintln(tw, strings.Repeat("-", 4)+"\t\t\t\t\t\t\t\t\t")
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%+d\t%d\n",
			i+1, e.Team, e.Played, e.Wins, e.Draws, e.Losses, e.GoalsFor, e.GoalsAgainst, e.GoalDiff, e.Points)
	}
	return tw.Flush()
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
