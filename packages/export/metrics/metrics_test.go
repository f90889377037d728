package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

func sampleReport() results.Report {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return results.Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Finished:   true,
		Success:    false,
		Targets: []results.TargetResult{
			{Key: "App", Success: true, Cases: []results.TestCase{
				{Suite: "LoginTests", Name: "testLogin", Status: results.StatusPassed, DurationMS: results.Millis(120)},
				{Suite: "LoginTests", Name: "testLogout", Status: results.StatusSkipped},
			}},
			{Key: `Core|"Parser"`, Success: false, Cases: []results.TestCase{
				{Suite: "ParserTests", Name: "testParse", Status: results.StatusFailed, DurationMS: results.Millis(30)},
			}},
		},
	}
}

func TestFromReport(t *testing.T) {
	m := FromReport(sampleReport(), false)

	assert.Equal(t, "run-1", m.RunID)
	assert.False(t, m.Success)
	assert.InDelta(t, 90.0, m.DurationSeconds, 0.001)
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Passed)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 1, m.Skipped)
	assert.InDelta(t, 120.0, m.MaxDurationMs, 1)

	require.Len(t, m.Targets, 2)
	assert.Equal(t, TargetMetrics{Key: "App", Success: true, Tests: 2, DurationMs: 120}, m.Targets[0])
	assert.Equal(t, 1, m.Targets[1].Failed)
}

func TestFromReport_Cancelled(t *testing.T) {
	r := sampleReport()
	r.Success = true
	r.Targets = r.Targets[:1]
	assert.True(t, FromReport(r, false).Success)

	m := FromReport(r, true)
	assert.False(t, m.Success)
	assert.True(t, m.Cancelled)
}

func TestPrometheusExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewPrometheusExporter(WithPrometheusWriter(&buf))
	require.NoError(t, exp.Export(context.Background(), FromReport(sampleReport(), false)))

	out := buf.String()
	assert.Contains(t, out, "# TYPE xcrunner_run_success gauge\nxcrunner_run_success 0\n")
	assert.Contains(t, out, "xcrunner_run_duration_seconds 90.000\n")
	assert.Contains(t, out, `xcrunner_tests{status="failed"} 1`)
	assert.Contains(t, out, `xcrunner_target_success{target="App"} 1`)
	assert.Contains(t, out, `xcrunner_target_failed_tests{target="Core|\"Parser\""} 1`)
	assert.Contains(t, out, `xcrunner_test_duration_ms{quantile="1"}`)
}

func TestPrometheusExporter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "xcrunner.prom")
	exp := NewPrometheusExporter(WithPrometheusFile(path), WithPrometheusPrefix("ios"))
	require.NoError(t, exp.Export(context.Background(), FromReport(sampleReport(), false)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ios_run_success 0")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, `a\\b\"c\nd`, sanitizeLabel("a\\b\"c\nd"))
}

func TestDataDogExporter(t *testing.T) {
	var (
		apiKey  string
		payload datadogPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("DD-API-KEY")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	exp := NewDataDogExporter(
		WithDataDogAPIKey("secret"),
		WithDataDogEndpoint(srv.URL),
		WithDataDogTags([]string{"ci:true"}),
	)
	require.NoError(t, exp.Export(context.Background(), FromReport(sampleReport(), false)))

	assert.Equal(t, "secret", apiKey)
	names := make(map[string][]string)
	for _, s := range payload.Series {
		names[s.Metric] = s.Tags
	}
	assert.Contains(t, names, "xcrunner.run.success")
	assert.Contains(t, names, "xcrunner.tests.failed")
	assert.Contains(t, names["xcrunner.target.success"], "ci:true")
}

func TestDataDogExporter_Errors(t *testing.T) {
	t.Setenv("DD_API_KEY", "")
	err := NewDataDogExporter().Export(context.Background(), FromReport(sampleReport(), false))
	assert.ErrorContains(t, err, "API key not configured")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	err = NewDataDogExporter(WithDataDogAPIKey("k"), WithDataDogEndpoint(srv.URL)).Export(context.Background(), FromReport(sampleReport(), false))
	assert.ErrorContains(t, err, "status 403")
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, *RunMetrics) error { return errors.New("boom") }
func (failingExporter) Name() string                            { return "failing" }

func TestExportAll(t *testing.T) {
	var buf bytes.Buffer
	err := ExportAll(context.Background(), FromReport(sampleReport(), false),
		failingExporter{}, NewPrometheusExporter(WithPrometheusWriter(&buf)))
	assert.ErrorContains(t, err, "failing: boom")
	assert.NotEmpty(t, buf.String(), "later exporters still run")
}
