package toolargs

import (
	"os"
	"path/filepath"
)

// XcodebuildOptions describes one xcodebuild test invocation
type XcodebuildOptions struct {
	ProjectPath     string
	Scheme          string
	ResultBundleDir string
	OnlyTesting     string
	TestPlan        string
	Destination     string

	// StopOnFirstFailure is accepted for symmetry with the run request.
	// xcodebuild has no native switch for it; the runner enforces it
	// between units instead.
	StopOnFirstFailure bool
}

// XcodebuildArgs is the argument list plus the result bundle it will produce
type XcodebuildArgs struct {
	Args             []string
	ResultBundlePath string
}

// Xcodebuild builds the arguments for `xcodebuild test`.
// The result bundle path is always <ResultBundleDir>/<Scheme>.xcresult.
func Xcodebuild(opts XcodebuildOptions) XcodebuildArgs {
	bundle := filepath.Join(opts.ResultBundleDir, opts.Scheme+".xcresult")

	args := []string{
		"test",
		"-scheme", opts.Scheme,
		"-resultBundlePath", bundle,
	}

	args = append(args, ContainerArgs(opts.ProjectPath)...)

	if opts.TestPlan != "" {
		args = append(args, "-testPlan", opts.TestPlan)
	}
	if opts.OnlyTesting != "" {
		args = append(args, "-only-testing:"+opts.OnlyTesting)
	}
	if dest := NormalizeDestination(opts.Destination); dest != "" {
		args = append(args, "-destination", dest)
	}

	return XcodebuildArgs{Args: args, ResultBundlePath: bundle}
}

// ContainerArgs selects the workspace, or failing that the project, found
// directly inside projectPath. A workspace wins because it also builds the
// packages the project depends on.
func ContainerArgs(projectPath string) []string {
	if ws := findContainer(projectPath, ".xcworkspace"); ws != "" {
		return []string{"-workspace", ws}
	}
	if proj := findContainer(projectPath, ".xcodeproj"); proj != "" {
		return []string{"-project", proj}
	}
	return nil
}

// XcodebuildList builds the arguments for `xcodebuild -list -json`
func XcodebuildList(projectPath string) []string {
	return append([]string{"-list", "-json"}, ContainerArgs(projectPath)...)
}

// findContainer returns the first entry of dir (in name order) with the
// given extension, or "" when there is none or dir cannot be read.
func findContainer(dir, ext string) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ext {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// NormalizeDestination turns a bare simulator or device UDID into an
// xcodebuild destination specifier. Anything else is returned verbatim.
func NormalizeDestination(dest string) string {
	if dest == "" {
		return ""
	}
	if LooksLikeUDID(dest) {
		return "id=" + dest
	}
	return dest
}

// LooksLikeUDID reports whether s is 36 characters of hex digits and
// exactly four hyphens.
func LooksLikeUDID(s string) bool {
	if len(s) != 36 {
		return false
	}
	hyphens := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-':
			hyphens++
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return hyphens == 4
}
