package xcresult

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseDocument_NestedSuites(t *testing.T) {
	cases, err := ParseDocument(readFixture(t, "summaries.json"))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	passed := cases[0]
	assert.Equal(t, "AppTests", passed.Suite)
	assert.Equal(t, "testLoginSucceeds()", passed.Name)
	assert.Equal(t, results.StatusPassed, passed.Status)
	require.NotNil(t, passed.DurationMS)
	assert.Equal(t, int64(12), *passed.DurationMS)
	assert.Empty(t, passed.FailureMessage)
	assert.Nil(t, passed.Location)

	failed := cases[1]
	assert.Equal(t, "SyncTests", failed.Suite)
	assert.Equal(t, "testMergeConflict()", failed.Name)
	assert.Equal(t, results.StatusFailed, failed.Status)
	assert.Equal(t, int64(1250), *failed.DurationMS)
	assert.Equal(t, `XCTAssertEqual failed: ("1") is not equal to ("2")`, failed.FailureMessage)
	require.NotNil(t, failed.Location)
	assert.Equal(t, "/src/SyncTests/MergeTests.swift", failed.Location.File)
	assert.Equal(t, 42, failed.Location.Line)
}

func TestParseDocument_Tolerance(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []results.TestCase
	}{
		{
			name: "empty object",
			doc:  `{}`,
		},
		{
			name: "summaries not a collection",
			doc:  `{"testPlanRunSummaries": {"_value": "oops"}}`,
		},
		{
			name: "non-object entries are skipped",
			doc: `{"testPlanRunSummaries": {"_values": ["x", 3, {"testableSummaries": {"_values": [null, {
				"targetName": {"_value": "T"},
				"tests": {"_values": [{"name": {"_value": "a"}, "testStatus": {"_value": "Success"}}]}
			}]}}]}}`,
			want: []results.TestCase{{Suite: "T", Name: "a", Status: results.StatusPassed}},
		},
		{
			name: "missing target name",
			doc: `{"testPlanRunSummaries": {"_values": [{"testableSummaries": {"_values": [{
				"tests": {"_values": [{"name": {"_value": "a"}, "testStatus": {"_value": "Failure"}}]}
			}]}}]}}`,
			want: []results.TestCase{{Suite: UnknownSuite, Name: "a", Status: results.StatusFailed}},
		},
		{
			name: "unnamed leaf skipped, unnamed group still walked",
			doc: `{"testPlanRunSummaries": {"_values": [{"testableSummaries": {"_values": [{
				"targetName": {"_value": "T"},
				"tests": {"_values": [
					{"testStatus": {"_value": "Success"}},
					{"subtests": {"_values": [{"name": {"_value": "deep"}, "testStatus": {"_value": "Expected Failure"}}]}}
				]}
			}]}}]}}`,
			want: []results.TestCase{{Suite: "T", Name: "deep", Status: results.StatusSkipped}},
		},
		{
			name: "mistyped subtests make a childless group",
			doc: `{"testPlanRunSummaries": {"_values": [{"testableSummaries": {"_values": [{
				"targetName": {"_value": "T"},
				"tests": {"_values": [{"name": {"_value": "g"}, "testStatus": {"_value": "Success"}, "subtests": 5}]}
			}]}}]}}`,
		},
		{
			name: "unparsable duration and mistyped failure message",
			doc: `{"testPlanRunSummaries": {"_values": [{"testableSummaries": {"_values": [{
				"targetName": {"_value": "T"},
				"tests": {"_values": [{
					"name": {"_value": "a"},
					"testStatus": {"_value": "Failure"},
					"duration": {"_value": "soon"},
					"failureSummaries": {"_values": [{"message": {"_value": 7}}]}
				}]}
			}]}}]}}`,
			want: []results.TestCase{{Suite: "T", Name: "a", Status: results.StatusFailed}},
		},
		{
			name: "passed leaf ignores failure summaries",
			doc: `{"testPlanRunSummaries": {"_values": [{"testableSummaries": {"_values": [{
				"targetName": {"_value": "T"},
				"tests": {"_values": [{
					"name": {"_value": "a"},
					"testStatus": {"_value": "Success"},
					"duration": {"_value": 0.0004},
					"failureSummaries": {"_values": [{"message": {"_value": "stale"}}]}
				}]}
			}]}}]}}`,
			want: []results.TestCase{{Suite: "T", Name: "a", Status: results.StatusPassed, DurationMS: results.Millis(0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocument([]byte(tt.doc))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDocument_InvalidJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`{"testPlanRunSummaries": `))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = ParseDocument([]byte("Error: This command is deprecated"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

type fakeXcrun struct {
	docs  map[string][]byte
	calls [][]string
	err   error
}

func (f *fakeXcrun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	id := ""
	for i, a := range args {
		if a == "--id" && i+1 < len(args) {
			id = args[i+1]
		}
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, errors.New("object not found")
	}
	return doc, nil
}

func newTestExtractor(f *fakeXcrun, opts ...Option) *Extractor {
	opts = append([]Option{
		WithCommand(f.run),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewExtractor(opts...)
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("root document with summaries", func(t *testing.T) {
		f := &fakeXcrun{docs: map[string][]byte{"": readFixture(t, "summaries.json")}}
		cases, err := newTestExtractor(f).Extract(context.Background(), "/tmp/run/App.xcresult")
		require.NoError(t, err)
		assert.Len(t, cases, 2)

		require.Len(t, f.calls, 1)
		assert.Equal(t, []string{"xcrun", "xcresulttool", "get", "--format", "json", "--path", "/tmp/run/App.xcresult"}, f.calls[0])
	})

	t.Run("follows tests references and tolerates missing ones", func(t *testing.T) {
		f := &fakeXcrun{docs: map[string][]byte{
			"":              readFixture(t, "invocation.json"),
			"0~tests-ref-1": readFixture(t, "summaries.json"),
		}}
		cases, err := newTestExtractor(f).Extract(context.Background(), "App.xcresult")
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, "testLoginSucceeds()", cases[0].Name)
		assert.Len(t, f.calls, 3)
	})

	t.Run("fetches failure details from the summary reference", func(t *testing.T) {
		f := &fakeXcrun{docs: map[string][]byte{
			"":            readFixture(t, "metadata.json"),
			"0~summary-1": readFixture(t, "summary.json"),
		}}
		cases, err := newTestExtractor(f).Extract(context.Background(), "App.xcresult")
		require.NoError(t, err)
		require.Len(t, cases, 2)

		assert.Equal(t, results.StatusFailed, cases[0].Status)
		assert.Equal(t, "Asynchronous wait failed: Exceeded timeout of 0.1 seconds", cases[0].FailureMessage)
		require.NotNil(t, cases[0].Location)
		assert.Equal(t, 17, cases[0].Location.Line)

		assert.Equal(t, results.StatusSkipped, cases[1].Status)
		assert.Nil(t, cases[1].DurationMS)
	})

	t.Run("legacy query form", func(t *testing.T) {
		f := &fakeXcrun{docs: map[string][]byte{"": []byte(`{}`)}}
		_, err := newTestExtractor(f, WithLegacy(true)).Extract(context.Background(), "App.xcresult")
		require.NoError(t, err)
		assert.Equal(t, []string{"xcrun", "xcresulttool", "get", "object", "--legacy", "--format", "json", "--path", "App.xcresult"}, f.calls[0])
	})

	t.Run("command failure is fatal", func(t *testing.T) {
		f := &fakeXcrun{err: errors.New("exit status 1")}
		_, err := newTestExtractor(f).Extract(context.Background(), "App.xcresult")
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "xcresulttool failed"))
	})

	t.Run("invalid root document is fatal", func(t *testing.T) {
		f := &fakeXcrun{docs: map[string][]byte{"": []byte("not json")}}
		_, err := newTestExtractor(f).Extract(context.Background(), "App.xcresult")
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestQueryArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"xcresulttool", "get", "--format", "json", "--path", "b.xcresult", "--id", "0~x"},
		QueryArgs("b.xcresult", "0~x", false))
}

func TestRunCommand(t *testing.T) {
	out, err := runCommand(context.Background(), "sh", "-c", "printf '{}'")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))

	_, err = runCommand(context.Background(), "sh", "-c", "echo bundle is damaged >&2; exit 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle is damaged")
}
