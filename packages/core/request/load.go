package request

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/runner"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema request files are validated against
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Format is the encoding of a request file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from a file extension; anything that is
// not .yaml or .yml is read as JSON
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// SchemaError lists every schema violation found in a request document
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "request does not match schema: " + strings.Join(e.Problems, "; ")
}

// Is lets errors.Is(err, runner.ErrInvalidRequest) match schema failures
func (e *SchemaError) Is(target error) bool {
	return target == runner.ErrInvalidRequest
}

// LoadFile reads, schema-checks and decodes the request at path.
// The run rules of RunRequest.Validate are left to the caller, which may
// still add units or a project path to the loaded request.
func LoadFile(path string) (*runner.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	req, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// Parse checks a request document against Schema and decodes it.
// A partial request (no units, or schemes without a project path) is
// accepted; call RunRequest.Validate once it is complete.
func Parse(data []byte, format Format) (*runner.RunRequest, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var req runner.RunRequest
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", runner.ErrInvalidRequest, err)
	}
	return &req, nil
}

// ValidateDocument checks a JSON document against Schema
func ValidateDocument(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", runner.ErrInvalidRequest, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &SchemaError{Problems: problems}
}

func toJSON(data []byte, format Format) ([]byte, error) {
	if format != FormatYAML {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: malformed JSON", runner.ErrInvalidRequest)
		}
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", runner.ErrInvalidRequest, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", runner.ErrInvalidRequest)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", runner.ErrInvalidRequest, err)
	}
	return out, nil
}

// Marshal encodes req in format, for writing request files
func Marshal(req *runner.RunRequest, format Format) ([]byte, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if format == FormatYAML {
		return yaml.Marshal(req)
	}
	return json.MarshalIndent(req, "", "  ")
}
