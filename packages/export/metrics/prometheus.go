package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PrometheusExporter writes metrics in the Prometheus text format.
// Samples carry no timestamps, as the textfile collector rejects them.
type PrometheusExporter struct {
	writer   io.Writer
	filePath string
	prefix   string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter sets the output writer for Prometheus metrics
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusFile writes metrics to path, replacing it atomically
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.filePath = path
	}
}

// WithPrometheusPrefix sets the metric name prefix (default "xcrunner")
func WithPrometheusPrefix(prefix string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.prefix = prefix
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{prefix: "xcrunner"}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil && p.filePath == "" {
		p.writer = os.Stdout
	}
	return p
}

// Name implements Exporter
func (p *PrometheusExporter) Name() string {
	return "prometheus"
}

// Export implements Exporter
func (p *PrometheusExporter) Export(_ context.Context, m *RunMetrics) error {
	var buf bytes.Buffer
	p.writeMetrics(&buf, m)

	if p.writer != nil {
		if _, err := p.writer.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	if p.filePath != "" {
		return writeFileAtomic(p.filePath, buf.Bytes())
	}
	return nil
}

// writeFileAtomic writes through a temp file in the same directory so a
// collector never reads a partial file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".xcrunner-metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (p *PrometheusExporter) header(w io.Writer, name, help string, typ MetricType) string {
	full := p.prefix + "_" + name
	fmt.Fprintf(w, "# HELP %s %s\n", full, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", full, typ)
	return full
}

func (p *PrometheusExporter) writeMetrics(w io.Writer, m *RunMetrics) {
	name := p.header(w, "run_success", "Whether the last run passed (1) or not (0)", Gauge)
	fmt.Fprintf(w, "%s %g\n", name, boolValue(m.Success))

	name = p.header(w, "run_cancelled", "Whether the last run was cancelled", Gauge)
	fmt.Fprintf(w, "%s %g\n", name, boolValue(m.Cancelled))

	name = p.header(w, "run_timestamp_seconds", "Start time of the last run", Gauge)
	fmt.Fprintf(w, "%s %d\n", name, m.Timestamp.Unix())

	name = p.header(w, "run_duration_seconds", "Wall-clock duration of the last run", Gauge)
	fmt.Fprintf(w, "%s %.3f\n", name, m.DurationSeconds)

	name = p.header(w, "tests", "Test cases of the last run by status", Gauge)
	fmt.Fprintf(w, "%s{status=\"passed\"} %d\n", name, m.Passed)
	fmt.Fprintf(w, "%s{status=\"failed\"} %d\n", name, m.Failed)
	fmt.Fprintf(w, "%s{status=\"skipped\"} %d\n", name, m.Skipped)

	if m.MaxDurationMs > 0 {
		name = p.header(w, "test_duration_ms", "Test case duration in milliseconds", Gauge)
		fmt.Fprintf(w, "%s{quantile=\"0.5\"} %.2f\n", name, m.P50DurationMs)
		fmt.Fprintf(w, "%s{quantile=\"0.95\"} %.2f\n", name, m.P95DurationMs)
		fmt.Fprintf(w, "%s{quantile=\"0.99\"} %.2f\n", name, m.P99DurationMs)
		fmt.Fprintf(w, "%s{quantile=\"1\"} %.2f\n", name, m.MaxDurationMs)
	}

	if len(m.Targets) == 0 {
		return
	}
	name = p.header(w, "target_success", "Whether each target of the last run passed", Gauge)
	for _, t := range m.Targets {
		fmt.Fprintf(w, "%s{target=\"%s\"} %g\n", name, sanitizeLabel(t.Key), boolValue(t.Success))
	}
	name = p.header(w, "target_failed_tests", "Failed test cases per target", Gauge)
	for _, t := range m.Targets {
		fmt.Fprintf(w, "%s{target=\"%s\"} %d\n", name, sanitizeLabel(t.Key), t.Failed)
	}
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
