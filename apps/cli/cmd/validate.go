package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/request"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <request-file>...",
	Short: "Validate run request files without running them",
	Long: `Validate run request files (JSON or YAML) against the request schema
and the run request rules without starting any tool.

Examples:
  xcrunner validate ci.yaml
  xcrunner validate nightly.json smoke.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		req, err := request.LoadFile(file)
		if err == nil {
			err = req.Validate()
		}
		if err != nil {
			var schemaErr *request.SchemaError
			if errors.As(err, &schemaErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n", file)
				for _, p := range schemaErr.Problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
				}
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			}
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d targets)\n", file, len(req.Units()))
	}

	if hasErrors {
		return withExitCode(ExitRequestError, fmt.Errorf("validation failed"))
	}
	return nil
}
