package request

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/runner"
)

const yamlRequest = `
projectPath: ./App.xcworkspace
destination: "platform=iOS Simulator,name=iPhone 15"
stopOnFirstFailure: true
schemeTargets:
  - scheme: App
  - scheme: App
    onlyTesting: AppUITests
testPlanRuns:
  - scheme: App
    testPlan: Smoke
packages:
  - path: Packages/Core
    filter: CoreTests
`

func TestParse_YAML(t *testing.T) {
	req, err := Parse([]byte(yamlRequest), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "./App.xcworkspace", req.ProjectPath)
	assert.True(t, req.StopOnFirstFailure)
	assert.Equal(t, []runner.SchemeTarget{{Scheme: "App"}, {Scheme: "App", OnlyTesting: "AppUITests"}}, req.SchemeTargets)
	assert.Equal(t, []runner.TestPlanRun{{Scheme: "App", TestPlan: "Smoke"}}, req.TestPlanRuns)
	assert.Equal(t, []runner.PackageTarget{{Path: "Packages/Core", Filter: "CoreTests"}}, req.Packages)

	keys := make([]string, 0)
	for _, u := range req.Units() {
		keys = append(keys, u.Key)
	}
	assert.Equal(t, []string{"App", "App|AppUITests", "plan:App:Smoke", "Packages/Core|CoreTests"}, keys)
}

func TestParse_JSON(t *testing.T) {
	req, err := Parse([]byte(`{"packages":[{"path":"."}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []runner.PackageTarget{{Path: "."}}, req.Packages)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		format  Format
		wantErr string
	}{
		{"malformed json", `{"packages":`, FormatJSON, "malformed JSON"},
		{"malformed yaml", "packages: [", FormatYAML, "invalid run request"},
		{"empty yaml", "", FormatYAML, "empty document"},
		{"unknown field", `{"schemes":[]}`, FormatJSON, "schemes"},
		{"wrong type", `{"stopOnFirstFailure":"yes"}`, FormatJSON, "stopOnFirstFailure"},
		{"plan without testPlan", `{"projectPath":"p","testPlanRuns":[{"scheme":"App"}]}`, FormatJSON, "testPlan"},
		{"empty scheme", `{"projectPath":"p","schemeTargets":[{"scheme":""}]}`, FormatJSON, "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, runner.ErrInvalidRequest), "error %v should wrap ErrInvalidRequest", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_PartialRequest(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		format  Format
		wantErr string
	}{
		{"nothing to run", `{}`, FormatJSON, "nothing to run"},
		{"project and destination only", "projectPath: /tmp/proj\ndestination: platform=macOS\n", FormatYAML, "nothing to run"},
		{"scheme without project", "schemeTargets:\n  - scheme: App\n", FormatYAML, "project path is required"},
		{"duplicate keys", `{"packages":[{"path":"."},{"path":"."}]}`, FormatJSON, "duplicate unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.doc), tt.format)
			require.NoError(t, err)

			err = req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, runner.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDocument_ListsEveryProblem(t *testing.T) {
	err := ValidateDocument([]byte(`{"projectPath":"","packages":[{"filter":"x"}],"extra":1}`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.GreaterOrEqual(t, len(schemaErr.Problems), 3)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "request.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlRequest), 0644))

	req, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, req.Units(), 4)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read request file")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"extra":1}`), 0644))
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("run.YAML"))
	assert.Equal(t, FormatYAML, FormatForPath("run.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("run.json"))
	assert.Equal(t, FormatJSON, FormatForPath("run"))
}

func TestMarshal_RoundTrip(t *testing.T) {
	req, err := Parse([]byte(yamlRequest), FormatYAML)
	require.NoError(t, err)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := Marshal(req, format)
		require.NoError(t, err)
		back, err := Parse(data, format)
		require.NoError(t, err, string(format))
		assert.Equal(t, req, back)
	}

	_, err = Marshal(nil, FormatJSON)
	assert.Error(t, err)
}

func TestSchema_IsCopy(t *testing.T) {
	s := Schema()
	s[0] = 'x'
	assert.Equal(t, byte('{'), Schema()[0])
}
