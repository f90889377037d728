package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/xcrunner/packages/toolargs"
)

// SwiftPackage is a package with at least a manifest
type SwiftPackage struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	TestTargets []string `json:"testTargets"`
}

// Packages describes the package at root and every direct subdirectory
// holding a Package.swift. Packages that fail to describe are logged and
// left out.
func (d *Discoverer) Packages(ctx context.Context, root string) []SwiftPackage {
	var dirs []string
	if hasManifest(root) {
		dirs = append(dirs, root)
	}
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			sub := filepath.Join(root, e.Name())
			if e.IsDir() && hasManifest(sub) {
				dirs = append(dirs, sub)
			}
		}
	}

	var pkgs []SwiftPackage
	for _, dir := range dirs {
		pkg, err := d.describe(ctx, dir)
		if err != nil {
			d.logger.Warn("skipping package", "path", dir, "error", err)
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "Package.swift"))
	return err == nil && !info.IsDir()
}

func (d *Discoverer) describe(ctx context.Context, dir string) (SwiftPackage, error) {
	out, err := d.run(ctx, "swift", toolargs.SwiftPackageDescribe(dir)...)
	if err != nil {
		return SwiftPackage{}, err
	}
	return ParsePackageDescription(out, dir)
}

// ParsePackageDescription reads `swift package describe --type json`.
// Test targets are the targets whose type is "test".
func ParsePackageDescription(data []byte, path string) (SwiftPackage, error) {
	if !gjson.ValidBytes(data) {
		return SwiftPackage{}, fmt.Errorf("swift package describe returned invalid JSON")
	}
	root := gjson.ParseBytes(data)

	pkg := SwiftPackage{
		Name:        root.Get("name").String(),
		Path:        path,
		TestTargets: []string{},
	}
	if pkg.Name == "" {
		pkg.Name = "Unknown"
	}

	root.Get("targets").ForEach(func(_, target gjson.Result) bool {
		if target.Get("type").String() == "test" {
			if name := target.Get("name").String(); name != "" {
				pkg.TestTargets = append(pkg.TestTargets, name)
			}
		}
		return true
	})
	return pkg, nil
}
