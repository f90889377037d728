package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/config"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/request"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/runner"
	"github.com/abdul-hamid-achik/xcrunner/packages/discovery"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize xcrunner in the current directory",
	Long: `Initialize xcrunner in the current directory.

This creates:
  - .xcrunner.yaml   - Configuration file
  - xcrunner.yaml    - Run request for the schemes and packages found here

Examples:
  xcrunner init
  xcrunner init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

// starterRequest runs every discovered scheme and package
func starterRequest(p *discovery.Project) *runner.RunRequest {
	req := &runner.RunRequest{}
	for _, s := range p.Schemes {
		if len(s.TestTargets) == 0 {
			continue
		}
		req.SchemeTargets = append(req.SchemeTargets, runner.SchemeTarget{Scheme: s.Name})
	}
	if len(req.SchemeTargets) > 0 {
		req.ProjectPath = "."
	}
	for _, pkg := range p.Packages {
		if len(pkg.TestTargets) == 0 {
			continue
		}
		path := pkg.Path
		if rel, err := filepath.Rel(p.Path, pkg.Path); err == nil {
			path = rel
		}
		req.Packages = append(req.Packages, runner.PackageTarget{Path: path})
	}
	return req
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".xcrunner.yaml")
	requestFile := filepath.Join(cwd, "xcrunner.yaml")

	if !forceInit {
		for _, f := range []string{configFile, requestFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.ExtractResults = config.BoolPtr(true)
	cfg.History = config.BoolPtr(true)
	cfg.Notify = &config.NotifyConfig{On: "failure"}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	project, err := discovery.New().Project(cmd.Context(), cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: discovery failed: %v\n", err)
		project = &discovery.Project{Path: cwd}
	}
	req := starterRequest(project)
	if len(req.Units()) == 0 {
		req = &runner.RunRequest{
			ProjectPath:   ".",
			SchemeTargets: []runner.SchemeTarget{{Scheme: "App"}},
		}
		fmt.Fprintf(os.Stderr, "warning: no test targets found, wrote a placeholder scheme\n")
	}

	data, err := request.Marshal(req, request.FormatYAML)
	if err != nil {
		return err
	}
	if err := os.WriteFile(requestFile, data, 0644); err != nil {
		return fmt.Errorf("failed to create request file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s (%d targets)\n", requestFile, len(req.Units()))

	fmt.Fprintf(cmd.OutOrStdout(), "\nxcrunner initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'xcrunner run --request xcrunner.yaml' to execute it.\n")
	return nil
}
