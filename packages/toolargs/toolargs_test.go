package toolargs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"udid is wrapped", "E3F1C2A4-1234-4567-89AB-CDEF01234567", "id=E3F1C2A4-1234-4567-89AB-CDEF01234567"},
		{"lowercase udid is wrapped", "e3f1c2a4-1234-4567-89ab-cdef01234567", "id=e3f1c2a4-1234-4567-89ab-cdef01234567"},
		{"free-form expression passes through", "platform=iOS Simulator,name=iPhone 15", "platform=iOS Simulator,name=iPhone 15"},
		{"empty is omitted", "", ""},
		{"36 chars with non-hex", "G3F1C2A4-1234-4567-89AB-CDEF01234567", "G3F1C2A4-1234-4567-89AB-CDEF01234567"},
		{"36 chars with five hyphens", "E3F1C2A4-1234-4567-89AB-CDEF0123-567", "E3F1C2A4-1234-4567-89AB-CDEF0123-567"},
		{"35 chars", "E3F1C2A4-1234-4567-89AB-CDEF0123456", "E3F1C2A4-1234-4567-89AB-CDEF0123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDestination(tt.in))
		})
	}
}

func TestXcodebuild(t *testing.T) {
	t.Run("minimal arguments", func(t *testing.T) {
		dir := t.TempDir()
		got := Xcodebuild(XcodebuildOptions{
			ProjectPath:     dir,
			Scheme:          "App",
			ResultBundleDir: "/tmp/run",
		})
		assert.Equal(t, []string{"test", "-scheme", "App", "-resultBundlePath", "/tmp/run/App.xcresult"}, got.Args)
		assert.Equal(t, "/tmp/run/App.xcresult", got.ResultBundlePath)
	})

	t.Run("all selectors", func(t *testing.T) {
		dir := t.TempDir()
		got := Xcodebuild(XcodebuildOptions{
			ProjectPath:        dir,
			Scheme:             "App",
			ResultBundleDir:    "/tmp/run",
			TestPlan:           "Smoke",
			OnlyTesting:        "AppTests",
			Destination:        "E3F1C2A4-1234-4567-89AB-CDEF01234567",
			StopOnFirstFailure: true,
		})
		assert.Equal(t, []string{
			"test", "-scheme", "App", "-resultBundlePath", "/tmp/run/App.xcresult",
			"-testPlan", "Smoke",
			"-only-testing:AppTests",
			"-destination", "id=E3F1C2A4-1234-4567-89AB-CDEF01234567",
		}, got.Args)
	})

	t.Run("empty destination adds no selector", func(t *testing.T) {
		got := Xcodebuild(XcodebuildOptions{Scheme: "App", ResultBundleDir: "/tmp/run"})
		assert.NotContains(t, got.Args, "-destination")
	})

	t.Run("project container is detected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "App.xcodeproj"), 0o755))

		got := Xcodebuild(XcodebuildOptions{ProjectPath: dir, Scheme: "App", ResultBundleDir: "/tmp/run"})
		assert.Contains(t, got.Args, "-project")
		assert.Contains(t, got.Args, filepath.Join(dir, "App.xcodeproj"))
		assert.NotContains(t, got.Args, "-workspace")
	})

	t.Run("workspace takes precedence over project", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "App.xcodeproj"), 0o755))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "App.xcworkspace"), 0o755))

		got := Xcodebuild(XcodebuildOptions{ProjectPath: dir, Scheme: "App", ResultBundleDir: "/tmp/run"})
		assert.Contains(t, got.Args, "-workspace")
		assert.Contains(t, got.Args, filepath.Join(dir, "App.xcworkspace"))
		assert.NotContains(t, got.Args, "-project")
	})

	t.Run("first container in name order wins", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "Beta.xcworkspace"), 0o755))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "Alpha.xcworkspace"), 0o755))

		got := Xcodebuild(XcodebuildOptions{ProjectPath: dir, Scheme: "App", ResultBundleDir: "/tmp/run"})
		assert.Contains(t, got.Args, filepath.Join(dir, "Alpha.xcworkspace"))
	})

	t.Run("unreadable project path adds no container", func(t *testing.T) {
		got := Xcodebuild(XcodebuildOptions{ProjectPath: filepath.Join(t.TempDir(), "missing"), Scheme: "App", ResultBundleDir: "/tmp/run"})
		assert.NotContains(t, got.Args, "-workspace")
		assert.NotContains(t, got.Args, "-project")
	})
}

func TestSwiftTest(t *testing.T) {
	assert.Equal(t, []string{"test", "--package-path", "Packages/Core"}, SwiftTest("Packages/Core", ""))
	assert.Equal(t, []string{"test", "--package-path", "Packages/Core", "--filter", "CoreTests.testParse"}, SwiftTest("Packages/Core", "CoreTests.testParse"))
}

func TestXcodebuildList(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, []string{"-list", "-json"}, XcodebuildList(dir))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "App.xcodeproj"), 0o755))
	assert.Equal(t, []string{"-list", "-json", "-project", filepath.Join(dir, "App.xcodeproj")}, XcodebuildList(dir))
}

func TestSwiftPackageDescribe(t *testing.T) {
	assert.Equal(t, []string{"package", "--package-path", "Packages/Core", "describe", "--type", "json"}, SwiftPackageDescribe("Packages/Core"))
}
