package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/discovery"
)

var discoverJSONFlag bool

var discoverCmd = &cobra.Command{
	Use:   "discover [path]",
	Short: "List the schemes, test plans and packages in a directory",
	Long: `List the schemes (with their test targets), test plans and Swift
packages found in a directory. Defaults to the current directory.

Examples:
  xcrunner discover
  xcrunner discover ./ios --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: discoverCommand,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverJSONFlag, "json", false, "Print the result as JSON")
}

func discoverCommand(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	project, err := discovery.New().Project(cmd.Context(), path)
	if err != nil {
		return withExitCode(ExitToolError, err)
	}

	if discoverJSONFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(project)
	}
	printProject(cmd.OutOrStdout(), project)
	return nil
}

func printProject(w io.Writer, p *discovery.Project) {
	if noColorFlag {
		color.NoColor = true
	}
	heading := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	heading.Fprintf(w, "Schemes\n")
	if len(p.Schemes) == 0 {
		dim.Fprintf(w, "  (none)\n")
	}
	for _, s := range p.Schemes {
		fmt.Fprintf(w, "  %s\n", s.Name)
		for _, t := range s.TestTargets {
			dim.Fprintf(w, "    - %s\n", t)
		}
	}

	heading.Fprintf(w, "\nTest plans\n")
	if len(p.TestPlans) == 0 {
		dim.Fprintf(w, "  (none)\n")
	}
	for _, plan := range p.TestPlans {
		rel := plan.Path
		if r, err := filepath.Rel(p.Path, plan.Path); err == nil {
			rel = r
		}
		fmt.Fprintf(w, "  %s", plan.Name)
		dim.Fprintf(w, "  %s\n", rel)
	}

	heading.Fprintf(w, "\nPackages\n")
	if len(p.Packages) == 0 {
		dim.Fprintf(w, "  (none)\n")
	}
	for _, pkg := range p.Packages {
		rel := pkg.Path
		if r, err := filepath.Rel(p.Path, pkg.Path); err == nil {
			rel = r
		}
		fmt.Fprintf(w, "  %s", pkg.Name)
		dim.Fprintf(w, "  %s\n", rel)
		for _, t := range pkg.TestTargets {
			dim.Fprintf(w, "    - %s\n", t)
		}
	}
}
