package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/discovery"
)

var simulatorsJSONFlag bool

var simulatorsCmd = &cobra.Command{
	Use:     "simulators",
	Aliases: []string{"sims"},
	Short:   "List available simulators",
	Long: `List the available simulators, grouped by runtime. The UDID column can
be passed to run --destination.

Examples:
  xcrunner simulators
  xcrunner simulators --json`,
	Args: cobra.NoArgs,
	RunE: simulatorsCommand,
}

func init() {
	simulatorsCmd.Flags().BoolVar(&simulatorsJSONFlag, "json", false, "Print the result as JSON")
}

func simulatorsCommand(cmd *cobra.Command, args []string) error {
	sims, err := discovery.New().Simulators(cmd.Context())
	if err != nil {
		return withExitCode(ExitToolError, err)
	}

	if simulatorsJSONFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sims)
	}
	printSimulators(cmd.OutOrStdout(), sims)
	return nil
}

func printSimulators(w io.Writer, sims []discovery.Simulator) {
	if noColorFlag {
		color.NoColor = true
	}
	if len(sims) == 0 {
		fmt.Fprintln(w, "No available simulators")
		return
	}

	heading := color.New(color.Bold)
	booted := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	runtime := ""
	for _, s := range sims {
		if s.Runtime != runtime {
			if runtime != "" {
				fmt.Fprintln(w)
			}
			runtime = s.Runtime
			heading.Fprintf(w, "%s\n", runtime)
		}
		fmt.Fprintf(w, "  %-36s ", s.Name)
		dim.Fprintf(w, "%s", s.UDID)
		if s.State == "Booted" {
			booted.Fprintf(w, "  (Booted)")
		}
		fmt.Fprintln(w)
	}
}
