package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	RunID          string
	Success        bool
	Summary        results.Summary
	Targets        []HTMLTarget
	Errors         []string
	Duration       string
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLTarget represents one run unit for HTML output
type HTMLTarget struct {
	Key     string
	Success bool
	Source  string
	Tests   []HTMLTest
}

// HTMLTest represents a single test result for HTML output
type HTMLTest struct {
	Name        string
	Duration    string
	Failure     string
	Location    string
	StatusClass string
}

// HTMLFormatter formats a run report as a standalone HTML page
type HTMLFormatter struct {
	writer  io.Writer
	report  *results.Report
	version string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// Emit ignores live events; the report carries everything
func (f *HTMLFormatter) Emit(events.Event) {}

// FormatReport stores the report for Flush
func (f *HTMLFormatter) FormatReport(report results.Report) {
	f.report = &report
}

// FormatError handles errors (no-op for HTML, errors are in the report)
func (f *HTMLFormatter) FormatError(err error) {}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Flush writes the HTML report
func (f *HTMLFormatter) Flush() error {
	if f.report == nil {
		return nil
	}
	r := f.report
	s := r.Summary()

	output := HTMLOutput{
		Version:        f.version,
		RunID:          r.RunID,
		Success:        r.Passed(),
		Summary:        s,
		Errors:         r.Errors,
		Duration:       fmtDuration(r.Duration()),
		Time:           r.StartedAt.Format("2006-01-02 15:04:05"),
		PassedPercent:  percent(s.Passed, s.Total),
		FailedPercent:  percent(s.Failed, s.Total),
		SkippedPercent: percent(s.Skipped, s.Total),
	}

	for _, t := range r.Targets {
		target := HTMLTarget{Key: t.Key, Success: t.Success, Source: string(t.Source)}
		for _, tc := range t.Cases {
			test := HTMLTest{
				Name:        tc.FullName(),
				Failure:     tc.FailureMessage,
				Location:    locationString(tc.Location),
				StatusClass: string(tc.Status),
			}
			if d, ok := tc.Duration(); ok {
				test.Duration = fmtDuration(d)
			}
			target.Tests = append(target.Tests, test)
		}
		output.Targets = append(output.Targets, target)
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms": func(d time.Duration) string { return fmtDuration(d) },
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>xcrunner report {{.RunID}}</title>
<style>
body { font-family: -apple-system, Helvetica, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
.bar { display: flex; height: 10px; border-radius: 5px; overflow: hidden; background: #eee; margin: 1rem 0; }
.bar .passed { background: #2da44e; } .bar .failed { background: #cf222e; } .bar .skipped { background: #bf8700; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #eee; font-size: 0.9rem; }
tr.failed td { background: #fff5f5; } tr.skipped td { color: #888; }
.status-passed { color: #2da44e; } .status-failed { color: #cf222e; }
pre { white-space: pre-wrap; margin: 0; font-size: 0.8rem; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1 class="{{if .Success}}status-passed{{else}}status-failed{{end}}">{{if .Success}}All tests passed{{else}}Run failed{{end}}</h1>
<p class="meta">Run {{.RunID}} &middot; {{.Time}} &middot; {{.Duration}}{{if .Version}} &middot; xcrunner {{.Version}}{{end}}</p>
<p>{{.Summary.Total}} tests: {{.Summary.Passed}} passed, {{.Summary.Failed}} failed, {{.Summary.Skipped}} skipped{{if .Summary.Timed}} &middot; p50 {{ms .Summary.P50}}, p95 {{ms .Summary.P95}}, max {{ms .Summary.Max}}{{end}}</p>
<div class="bar">
<div class="passed" style="width: {{printf "%.1f" .PassedPercent}}%"></div>
<div class="failed" style="width: {{printf "%.1f" .FailedPercent}}%"></div>
<div class="skipped" style="width: {{printf "%.1f" .SkippedPercent}}%"></div>
</div>
{{range .Errors}}<p class="status-failed">{{.}}</p>
{{end}}
{{range .Targets}}
<h2 class="{{if .Success}}status-passed{{else}}status-failed{{end}}">{{.Key}}</h2>
<table>
<tr><th>Test</th><th>Status</th><th>Duration</th><th>Failure</th></tr>
{{range .Tests}}<tr class="{{.StatusClass}}"><td>{{.Name}}</td><td>{{.StatusClass}}</td><td>{{.Duration}}</td><td>{{if .Failure}}<pre>{{.Failure}}{{if .Location}}
{{.Location}}{{end}}</pre>{{end}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`
