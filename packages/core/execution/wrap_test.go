package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptWrapper(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		args     []string
		wantArgs []string
	}{
		{
			name:     "darwin passes argv through",
			goos:     "darwin",
			args:     []string{"test", "-scheme", "My App"},
			wantArgs: []string{"-q", "/dev/null", "--", "xcodebuild", "test", "-scheme", "My App"},
		},
		{
			name:     "linux quotes a single command string",
			goos:     "linux",
			args:     []string{"test", "-scheme", "My App"},
			wantArgs: []string{"-q", "-e", "-c", "xcodebuild test -scheme 'My App'", "/dev/null"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, args := ScriptWrapper(tt.goos)("xcodebuild", tt.args)
			assert.Equal(t, "script", prog)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestWrappers_Resolve(t *testing.T) {
	w := PTYWrappers("swift")

	prog, args := w.Resolve("/usr/bin/swift", []string{"test"})
	assert.Equal(t, "script", prog)
	assert.Contains(t, args, "test")

	prog, args = w.Resolve("xcrun", []string{"simctl"})
	assert.Equal(t, "xcrun", prog)
	assert.Equal(t, []string{"simctl"}, args)
}

func TestDefaultWrappers(t *testing.T) {
	w := DefaultWrappers()
	assert.Contains(t, w, "xcodebuild")
	assert.Contains(t, w, "swift")
	assert.NotContains(t, w, "xcrun")
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"platform=iOS Simulator,id=1", "'platform=iOS Simulator,id=1'"},
		{"it's", `'it'\''s'`},
		{"/tmp/xcode-test-runner/abc/r.xcresult", "/tmp/xcode-test-runner/abc/r.xcresult"},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shellQuote(tt.in), tt.in)
	}
}
