package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DataDogExporter exports metrics to DataDog
type DataDogExporter struct {
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
	client   *http.Client
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

// WithDataDogAPIKey sets the DataDog API key
func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		d.site = site
	}
}

// WithDataDogEndpoint overrides the series URL derived from the site
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = tags
	}
}

// WithDataDogPrefix sets a prefix for metric names
func WithDataDogPrefix(prefix string) DataDogOption {
	return func(d *DataDogExporter) {
		d.prefix = prefix
	}
}

// WithDataDogHTTPClient sets the HTTP client used to post series
func WithDataDogHTTPClient(c *http.Client) DataDogOption {
	return func(d *DataDogExporter) {
		d.client = c
	}
}

// NewDataDogExporter creates a new DataDog metrics exporter
func NewDataDogExporter(opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		site:   "datadoghq.com",
		prefix: "xcrunner",
		client: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(d)
	}

	// Try to get API key from environment if not set
	if d.apiKey == "" {
		d.apiKey = os.Getenv("DD_API_KEY")
	}

	return d
}

// datadogMetric represents a metric in DataDog format
type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

// datadogPayload is the payload sent to DataDog
type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

// Name implements Exporter
func (d *DataDogExporter) Name() string {
	return "datadog"
}

func (d *DataDogExporter) metricName(name string) string {
	return d.prefix + "." + name
}

func (d *DataDogExporter) withTags(extra ...string) []string {
	return append(extra, d.tags...)
}

// series builds the series posted for m
func (d *DataDogExporter) series(m *RunMetrics) []datadogMetric {
	ts := float64(m.Timestamp.Unix())
	point := func(v float64) [][]any { return [][]any{{ts, v}} }
	runTags := d.withTags("run_id:" + m.RunID)

	series := []datadogMetric{
		{Metric: d.metricName("run.success"), Type: "gauge", Points: point(boolValue(m.Success)), Tags: runTags},
		{Metric: d.metricName("run.duration"), Type: "gauge", Points: point(m.DurationSeconds), Tags: runTags},
		{Metric: d.metricName("tests.passed"), Type: "count", Points: point(float64(m.Passed)), Tags: runTags},
		{Metric: d.metricName("tests.failed"), Type: "count", Points: point(float64(m.Failed)), Tags: runTags},
		{Metric: d.metricName("tests.skipped"), Type: "count", Points: point(float64(m.Skipped)), Tags: runTags},
	}

	if m.MaxDurationMs > 0 {
		series = append(series,
			datadogMetric{Metric: d.metricName("test.duration.p50"), Type: "gauge", Points: point(m.P50DurationMs), Tags: runTags},
			datadogMetric{Metric: d.metricName("test.duration.p95"), Type: "gauge", Points: point(m.P95DurationMs), Tags: runTags},
			datadogMetric{Metric: d.metricName("test.duration.max"), Type: "gauge", Points: point(m.MaxDurationMs), Tags: runTags},
		)
	}

	for _, t := range m.Targets {
		tags := d.withTags("target:"+t.Key, "run_id:"+m.RunID)
		series = append(series,
			datadogMetric{Metric: d.metricName("target.success"), Type: "gauge", Points: point(boolValue(t.Success)), Tags: tags},
			datadogMetric{Metric: d.metricName("target.failed_tests"), Type: "count", Points: point(float64(t.Failed)), Tags: tags},
		)
	}
	return series
}

// Export implements Exporter
func (d *DataDogExporter) Export(ctx context.Context, m *RunMetrics) error {
	if d.apiKey == "" {
		return fmt.Errorf("DataDog API key not configured")
	}
	return d.sendMetrics(ctx, d.series(m))
}

func (d *DataDogExporter) sendMetrics(ctx context.Context, series []datadogMetric) error {
	payload := datadogPayload{Series: series}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	url := d.endpoint
	if url == "" {
		url = fmt.Sprintf("https://api.%s/api/v1/series", d.site)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
