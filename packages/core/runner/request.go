package runner

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/abdul-hamid-achik/xcrunner/packages/toolargs"
)

// ErrInvalidRequest is wrapped by every RunRequest validation failure
var ErrInvalidRequest = errors.New("invalid run request")

// RunRequest describes everything a single run should execute
type RunRequest struct {
	ProjectPath        string          `json:"projectPath,omitempty" yaml:"projectPath,omitempty"`
	SchemeTargets      []SchemeTarget  `json:"schemeTargets,omitempty" yaml:"schemeTargets,omitempty"`
	TestPlanRuns       []TestPlanRun   `json:"testPlanRuns,omitempty" yaml:"testPlanRuns,omitempty"`
	Packages           []PackageTarget `json:"packages,omitempty" yaml:"packages,omitempty"`
	StopOnFirstFailure bool            `json:"stopOnFirstFailure,omitempty" yaml:"stopOnFirstFailure,omitempty"`
	Destination        string          `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// SchemeTarget runs one scheme, optionally limited to a single test target
type SchemeTarget struct {
	Scheme      string `json:"scheme" yaml:"scheme"`
	OnlyTesting string `json:"onlyTesting,omitempty" yaml:"onlyTesting,omitempty"`
}

// TestPlanRun runs one test plan of a scheme
type TestPlanRun struct {
	Scheme   string `json:"scheme" yaml:"scheme"`
	TestPlan string `json:"testPlan" yaml:"testPlan"`
}

// PackageTarget runs swift test for one package, optionally filtered
type PackageTarget struct {
	Path   string `json:"path" yaml:"path"`
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// UnitKind is the tool family a RunUnit is executed with
type UnitKind string

const (
	UnitScheme  UnitKind = "scheme"
	UnitPlan    UnitKind = "plan"
	UnitPackage UnitKind = "package"
)

// RunUnit is one schedulable tool invocation
type RunUnit struct {
	Key         string
	Kind        UnitKind
	Scheme      string
	OnlyTesting string
	TestPlan    string
	PackagePath string
	Filter      string
}

// SchemeKey is "scheme" or "scheme|filter"
func SchemeKey(scheme, onlyTesting string) string {
	if onlyTesting == "" {
		return scheme
	}
	return scheme + "|" + onlyTesting
}

// PlanKey is "plan:scheme:plan"
func PlanKey(scheme, plan string) string {
	return "plan:" + scheme + ":" + plan
}

// PackageKey is "path" or "path|filter"
func PackageKey(path, filter string) string {
	if filter == "" {
		return path
	}
	return path + "|" + filter
}

// Units flattens the request in execution order
func (r *RunRequest) Units() []RunUnit {
	units := make([]RunUnit, 0, len(r.SchemeTargets)+len(r.TestPlanRuns)+len(r.Packages))
	for _, st := range r.SchemeTargets {
		units = append(units, RunUnit{
			Key:         SchemeKey(st.Scheme, st.OnlyTesting),
			Kind:        UnitScheme,
			Scheme:      st.Scheme,
			OnlyTesting: st.OnlyTesting,
		})
	}
	for _, tp := range r.TestPlanRuns {
		units = append(units, RunUnit{
			Key:      PlanKey(tp.Scheme, tp.TestPlan),
			Kind:     UnitPlan,
			Scheme:   tp.Scheme,
			TestPlan: tp.TestPlan,
		})
	}
	for _, p := range r.Packages {
		units = append(units, RunUnit{
			Key:         PackageKey(p.Path, p.Filter),
			Kind:        UnitPackage,
			PackagePath: p.Path,
			Filter:      p.Filter,
		})
	}
	return units
}

// Validate checks that the request can be scheduled
func (r *RunRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	for i, st := range r.SchemeTargets {
		if st.Scheme == "" {
			return fmt.Errorf("%w: scheme target %d has no scheme", ErrInvalidRequest, i+1)
		}
	}
	for i, tp := range r.TestPlanRuns {
		if tp.Scheme == "" || tp.TestPlan == "" {
			return fmt.Errorf("%w: test plan run %d needs both scheme and test plan", ErrInvalidRequest, i+1)
		}
	}
	for i, p := range r.Packages {
		if p.Path == "" {
			return fmt.Errorf("%w: package %d has no path", ErrInvalidRequest, i+1)
		}
	}

	units := r.Units()
	if len(units) == 0 {
		return fmt.Errorf("%w: nothing to run", ErrInvalidRequest)
	}
	if r.ProjectPath == "" && (len(r.SchemeTargets) > 0 || len(r.TestPlanRuns) > 0) {
		return fmt.Errorf("%w: project path is required for schemes and test plans", ErrInvalidRequest)
	}

	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.Key] {
			return fmt.Errorf("%w: duplicate unit %q", ErrInvalidRequest, u.Key)
		}
		seen[u.Key] = true
	}
	return nil
}

// Invocation is the process a RunUnit turns into
type Invocation struct {
	Program          string
	Args             []string
	Dir              string
	ResultBundlePath string
}

// Invocation builds the command line for unit. Result bundles are written
// under scratchDir.
func (r *RunRequest) Invocation(unit RunUnit, scratchDir string) Invocation {
	switch unit.Kind {
	case UnitPackage:
		path := r.packageDir(unit.PackagePath)
		return Invocation{
			Program: "swift",
			Args:    toolargs.SwiftTest(path, unit.Filter),
			Dir:     path,
		}
	default:
		built := toolargs.Xcodebuild(toolargs.XcodebuildOptions{
			ProjectPath:        r.ProjectPath,
			Scheme:             unit.Scheme,
			ResultBundleDir:    scratchDir,
			OnlyTesting:        unit.OnlyTesting,
			TestPlan:           unit.TestPlan,
			Destination:        r.Destination,
			StopOnFirstFailure: r.StopOnFirstFailure,
		})
		return Invocation{
			Program:          "xcodebuild",
			Args:             built.Args,
			Dir:              r.ProjectPath,
			ResultBundlePath: built.ResultBundlePath,
		}
	}
}

// packageDir resolves a package path against the project root
func (r *RunRequest) packageDir(path string) string {
	if !filepath.IsAbs(path) && r.ProjectPath != "" {
		path = filepath.Join(r.ProjectPath, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
