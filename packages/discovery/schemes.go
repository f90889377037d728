package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/xcrunner/packages/toolargs"
)

// Scheme is a runnable xcodebuild scheme
type Scheme struct {
	Name string `json:"name"`
	// TestTargets come from the shared .xcscheme; empty when the scheme is
	// not shared or declares no testables.
	TestTargets []string `json:"testTargets,omitempty"`
}

// Schemes lists the schemes of the workspace or project inside projectPath
func (d *Discoverer) Schemes(ctx context.Context, projectPath string) ([]Scheme, error) {
	container := toolargs.ContainerArgs(projectPath)
	if container == nil {
		return nil, nil
	}

	out, err := d.run(ctx, "xcodebuild", toolargs.XcodebuildList(projectPath)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemes: %w", err)
	}
	names, err := ParseSchemeList(out)
	if err != nil {
		return nil, err
	}

	schemes := make([]Scheme, 0, len(names))
	for _, name := range names {
		s := Scheme{Name: name}
		targets, err := schemeTestTargets(container[1], name)
		if err != nil {
			d.logger.Debug("scheme testables unavailable", "scheme", name, "error", err)
		}
		s.TestTargets = targets
		schemes = append(schemes, s)
	}
	return schemes, nil
}

// ParseSchemeList reads scheme names from `xcodebuild -list -json`, which
// nests them under "workspace" or "project" depending on the container
func ParseSchemeList(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("xcodebuild -list returned invalid JSON")
	}
	root := gjson.ParseBytes(data)
	list := root.Get("workspace.schemes")
	if !list.Exists() {
		list = root.Get("project.schemes")
	}

	var names []string
	for _, v := range list.Array() {
		if v.Type == gjson.String && v.Str != "" {
			names = append(names, v.Str)
		}
	}
	return names, nil
}

type xcscheme struct {
	Testables []struct {
		Skipped   string `xml:"skipped,attr"`
		Buildable struct {
			BlueprintName string `xml:"BlueprintName,attr"`
		} `xml:"BuildableReference"`
	} `xml:"TestAction>Testables>TestableReference"`
}

// schemeTestTargets reads the testables of a shared scheme
func schemeTestTargets(container, scheme string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(container, "xcshareddata", "xcschemes", scheme+".xcscheme"))
	if err != nil {
		return nil, err
	}
	return ParseSchemeTestables(data)
}

// ParseSchemeTestables returns the names of the test targets an .xcscheme
// runs, leaving out testables marked skipped
func ParseSchemeTestables(data []byte) ([]string, error) {
	var doc xcscheme
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid xcscheme: %w", err)
	}
	var targets []string
	for _, t := range doc.Testables {
		if t.Skipped == "YES" || t.Buildable.BlueprintName == "" {
			continue
		}
		targets = append(targets, t.Buildable.BlueprintName)
	}
	return targets, nil
}
