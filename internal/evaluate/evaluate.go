// Package evaluate scores routing outcomes and aggregates them into per-run
// metrics, cross-run statistics and architecture comparisons.
package evaluate

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/routing"
)

// SingleRunTieThreshold is the accuracy difference, in percentage points,
// below which a single-run comparison is declared a tie.
const SingleRunTieThreshold = 5.0

// Tie is reported as the winner when no architecture is ahead.
const Tie = "Tie"

// IsCorrect reports whether a routed label reached the expected domain.
func IsCorrect(routedTo, expected string) bool {
	return expected != "" && strings.Contains(routedTo, expected)
}

// Scored is a dispatch outcome paired with its expected domain.
type Scored struct {
	routing.Outcome
	Expected string
	Correct  bool
}

// Score pairs outcomes with queries by position. Extra entries on either side
// are ignored.
func Score(outcomes []routing.Outcome, queries []catalog.Query) []Scored {
	n := min(len(outcomes), len(queries))
	out := make([]Scored, n)
	for i := 0; i < n; i++ {
		out[i] = Scored{
			Outcome:  outcomes[i],
			Expected: queries[i].Expected,
			Correct:  outcomes[i].Err == nil && IsCorrect(outcomes[i].RoutedTo, queries[i].Expected),
		}
	}
	return out
}

// RunMetrics summarises one architecture over one pass of the query set.
type RunMetrics struct {
	Run          int
	Architecture string
	Correct      int
	Total        int
	// Accuracy is a percentage in [0, 100].
	Accuracy float64
	// AvgLatency is in seconds per query.
	AvgLatency float64
	AvgHops    float64
	Errors     int
}

// CalculateRun computes metrics for one run. All averages are zero when
// there are no results.
func CalculateRun(run int, arch string, scored []Scored) RunMetrics {
	m := RunMetrics{Run: run, Architecture: arch, Total: len(scored)}
	if m.Total == 0 {
		return m
	}

	var latency, hops float64
	for _, s := range scored {
		if s.Correct {
			m.Correct++
		}
		if s.Err != nil {
			m.Errors++
		}
		latency += s.Latency.Seconds()
		hops += float64(s.Hops)
	}

	total := float64(m.Total)
	m.Accuracy = float64(m.Correct) / total * 100
	m.AvgLatency = latency / total
	m.AvgHops = hops / total
	return m
}

// Misrouted returns the scored results that did not reach their expected domain.
func Misrouted(scored []Scored) []Scored {
	var out []Scored
	for _, s := range scored {
		if !s.Correct {
			out = append(out, s)
		}
	}
	return out
}

// Stat is the mean, minimum and maximum of a metric across runs.
type Stat struct {
	Avg float64
	Min float64
	Max float64
}

// Summary aggregates every run of one architecture.
type Summary struct {
	Architecture string
	Runs         int
	Accuracy     Stat
	Latency      Stat
	Hops         Stat
}

// Summarize aggregates runs. Min <= Avg <= Max holds for every metric.
func Summarize(arch string, runs []RunMetrics) Summary {
	s := Summary{Architecture: arch, Runs: len(runs)}
	if len(runs) == 0 {
		return s
	}

	acc := make([]float64, len(runs))
	lat := make([]float64, len(runs))
	hops := make([]float64, len(runs))
	for i, r := range runs {
		acc[i] = r.Accuracy
		lat[i] = r.AvgLatency
		hops[i] = r.AvgHops
	}

	s.Accuracy = newStat(acc)
	s.Latency = newStat(lat)
	s.Hops = newStat(hops)
	return s
}

func newStat(values []float64) Stat {
	lo, hi := floats.Min(values), floats.Max(values)
	// Rounding in the mean can land a hair outside the range.
	avg := math.Min(math.Max(stat.Mean(values, nil), lo), hi)
	return Stat{Avg: avg, Min: lo, Max: hi}
}

// Comparison names the best architecture per metric.
type Comparison struct {
	AccuracyWinner string
	LatencyWinner  string
	HopsWinner     string

	Recommendation string
	Reason         string
}

// Compare ranks summaries. Higher average accuracy wins unless the lead is
// below tieThreshold percentage points, in which case the result is Tie.
// Lower latency and fewer hops win. The recommendation goes to the highest
// accuracy. Equal values favour the architecture listed later.
func Compare(summaries []Summary, tieThreshold float64) Comparison {
	var c Comparison
	if len(summaries) == 0 {
		return c
	}
	if len(summaries) == 1 {
		only := summaries[0].Architecture
		return Comparison{
			AccuracyWinner: only,
			LatencyWinner:  only,
			HopsWinner:     only,
			Recommendation: only,
			Reason:         "Only architecture evaluated",
		}
	}

	best, second := -1, -1
	for i, s := range summaries {
		switch {
		case best < 0 || s.Accuracy.Avg > summaries[best].Accuracy.Avg:
			second = best
			best = i
		case second < 0 || s.Accuracy.Avg > summaries[second].Accuracy.Avg:
			second = i
		}
	}
	lead := summaries[best].Accuracy.Avg - summaries[second].Accuracy.Avg
	if lead == 0 || lead < tieThreshold {
		c.AccuracyWinner = Tie
	} else {
		c.AccuracyWinner = summaries[best].Architecture
	}

	c.LatencyWinner = lowest(summaries, func(s Summary) float64 { return s.Latency.Avg })
	c.HopsWinner = lowest(summaries, func(s Summary) float64 { return s.Hops.Avg })

	rec := 0
	for i, s := range summaries {
		if s.Accuracy.Avg >= summaries[rec].Accuracy.Avg {
			rec = i
		}
	}
	c.Recommendation = summaries[rec].Architecture
	if c.AccuracyWinner == Tie {
		c.Reason = "Better or equal accuracy with " + strings.ToLower(c.Recommendation) + " routing"
	} else {
		c.Reason = "Best accuracy across the evaluated architectures"
	}
	return c
}

func lowest(summaries []Summary, metric func(Summary) float64) string {
	idx := 0
	for i, s := range summaries {
		if metric(s) <= metric(summaries[idx]) {
			idx = i
		}
	}
	return summaries[idx].Architecture
}
