package results

import (
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxTrackableMicros = 3_600_000_000 // one hour

// Summary aggregates a list of test cases
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// Duration is the sum of all recorded case durations
	Duration time.Duration `json:"duration"`
	Timed    int           `json:"timed"`

	// Percentiles are approximate to three significant digits
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`

	// Slowest lists up to SlowestLimit timed cases, longest first
	Slowest []TestCase `json:"slowest,omitempty"`
}

// SlowestLimit bounds Summary.Slowest
const SlowestLimit = 5

// Summarize counts cases by status and computes duration percentiles.
// Cases without a duration are counted but not timed.
func Summarize(cases []TestCase) Summary {
	s := Summary{Total: len(cases)}
	// 1us to 1h, 3 significant digits
	hist := hdrhistogram.New(1, maxTrackableMicros, 3)

	var timed []TestCase
	for _, tc := range cases {
		switch tc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Skipped++
		}

		d, ok := tc.Duration()
		if !ok {
			continue
		}
		s.Duration += d
		timed = append(timed, tc)

		us := d.Microseconds()
		if us < 1 {
			us = 1
		}
		if us > maxTrackableMicros {
			us = maxTrackableMicros
		}
		_ = hist.RecordValue(us)
	}

	s.Timed = len(timed)
	if s.Timed == 0 {
		return s
	}

	s.P50 = micros(hist.ValueAtQuantile(50))
	s.P95 = micros(hist.ValueAtQuantile(95))
	s.P99 = micros(hist.ValueAtQuantile(99))
	s.Mean = s.Duration / time.Duration(s.Timed)

	sort.SliceStable(timed, func(i, j int) bool {
		return *timed[i].DurationMS > *timed[j].DurationMS
	})
	s.Max = time.Duration(*timed[0].DurationMS) * time.Millisecond
	if len(timed) > SlowestLimit {
		timed = timed[:SlowestLimit]
	}
	s.Slowest = timed
	return s
}

// AllPassed reports whether nothing failed
func (s Summary) AllPassed() bool {
	return s.Failed == 0
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
