package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TestPlan is an .xctestplan file
type TestPlan struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// TestPlans finds .xctestplan files in root and one level of subdirectories,
// sorted by path
func TestPlans(root string) ([]TestPlan, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var plans []TestPlan
	plans = collectPlans(root, entries, plans)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		sub, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		plans = collectPlans(dir, sub, plans)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Path < plans[j].Path })
	return plans, nil
}

func collectPlans(dir string, entries []os.DirEntry, out []TestPlan) []TestPlan {
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".xctestplan" {
			continue
		}
		out = append(out, TestPlan{
			Name: strings.TrimSuffix(e.Name(), ".xctestplan"),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return out
}
