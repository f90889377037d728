package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// Formatter renders a run. Emit may be called from several goroutines.
type Formatter interface {
	events.Sink
	FormatReport(report results.Report)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that write once the run is over
type Flushable interface {
	Flush() error
}

// Options are shared by every formatter built through New
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

var formats = map[string]func(Options) Formatter{
	"console": func(o Options) Formatter {
		return NewConsoleFormatter(WithWriter(o.Writer), WithVerbose(o.Verbose), WithNoColor(o.NoColor))
	},
	"json":   func(o Options) Formatter { return NewJSONFormatter(JSONWithWriter(o.Writer)) },
	"junit":  func(o Options) Formatter { return NewJUnitFormatter(JUnitWithWriter(o.Writer)) },
	"tap":    func(o Options) Formatter { return NewTAPFormatter(TAPWithWriter(o.Writer)) },
	"html":   func(o Options) Formatter { return NewHTMLFormatter(HTMLWithWriter(o.Writer)) },
	"events": func(o Options) Formatter { return NewEventsFormatter(EventsWithWriter(o.Writer)) },
}

// Formats lists the names accepted by New
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the formatter registered under name
func New(name string, opts Options) (Formatter, error) {
	build, ok := formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (want %s)", name, strings.Join(Formats(), ", "))
	}
	return build(opts), nil
}

// casesByTarget pairs every case with the key of the unit that ran it
func casesByTarget(report results.Report) []targetCase {
	var out []targetCase
	for _, t := range report.Targets {
		for _, tc := range t.Cases {
			out = append(out, targetCase{target: t.Key, TestCase: tc})
		}
	}
	return out
}

type targetCase struct {
	results.TestCase
	target string
}

func locationString(loc *results.Location) string {
	if loc == nil {
		return ""
	}
	if loc.Line > 0 {
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	}
	return loc.File
}

func durationMS(tc results.TestCase) float64 {
	if tc.DurationMS == nil {
		return 0
	}
	return float64(*tc.DurationMS)
}
