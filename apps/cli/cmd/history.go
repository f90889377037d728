package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/config"
	"github.com/abdul-hamid-achik/xcrunner/packages/history"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

var (
	historyLimitFlag int
	historyJSONFlag  bool
	historyKeepFlag  int
	historyPathFlag  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List the most recent runs recorded in the run history database.

Examples:
  xcrunner history
  xcrunner history --limit 5 --json
  xcrunner history show 3f0c...
  xcrunner history prune --keep 20`,
	Args: cobra.NoArgs,
	RunE: historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run and its test cases",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  historyPruneCommand,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyPathFlag, "db", getEnvString("XCRUNNER_HISTORY", ""), "Run history database (default: user config dir) (env: XCRUNNER_HISTORY)")
	historyCmd.PersistentFlags().BoolVar(&historyJSONFlag, "json", false, "Print the result as JSON")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("XCRUNNER_HISTORY_LIMIT", 20), "Number of runs to list (env: XCRUNNER_HISTORY_LIMIT)")
	historyPruneCmd.Flags().IntVar(&historyKeepFlag, "keep", config.DefaultRetainLastRuns, "Number of runs to keep")

	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
}

// openHistory opens the store named by --db, the config file or the default
func openHistory() (*history.Store, error) {
	location := historyPathFlag
	if location == "" {
		if cfg, err := config.LoadConfig(configFlag); err == nil && cfg.HistoryDB != "" {
			location = cfg.HistoryDB
		}
	}
	if location == "" {
		location = history.DefaultPath()
	}
	store, err := history.Open(location)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return store, nil
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}

	if historyJSONFlag {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s\n", store.Path())
		return nil
	}
	for _, run := range runs {
		printRunLine(cmd.OutOrStdout(), run)
	}
	return nil
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(cmd.Context(), args[0])
	if errors.Is(err, history.ErrRunNotFound) {
		return withExitCode(ExitUsageError, err)
	}
	if err != nil {
		return err
	}
	cases, err := store.TestCases(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	if historyJSONFlag {
		return writeJSON(cmd.OutOrStdout(), struct {
			*history.Run
			Cases []results.TestCase `json:"cases"`
		}{run, cases})
	}
	printRunDetail(cmd.OutOrStdout(), *run, cases)
	return nil
}

func historyPruneCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(cmd.Context(), historyKeepFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs\n", n)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusColor(status history.RunStatus) *color.Color {
	if noColorFlag {
		color.NoColor = true
	}
	switch status {
	case history.RunPassed:
		return color.New(color.FgGreen)
	case history.RunFailed:
		return color.New(color.FgRed)
	case history.RunCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func runDuration(run history.Run) string {
	if run.DurationMS == nil {
		return "-"
	}
	return fmtMillis(*run.DurationMS)
}

func fmtMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(10 * time.Millisecond).String()
}

func printRunLine(w io.Writer, run history.Run) {
	statusColor(run.Status).Fprintf(w, "%-9s ", run.Status)
	fmt.Fprintf(w, "%s  %s  %3d passed %3d failed %3d skipped  %8s  %s\n",
		run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.Passed, run.Failed, run.Skipped, runDuration(run), run.Scope)
}

func printRunDetail(w io.Writer, run history.Run, cases []results.TestCase) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	bold.Fprintf(w, "Run %s ", run.ID)
	statusColor(run.Status).Fprintf(w, "%s\n", run.Status)
	fmt.Fprintf(w, "Project:  %s\n", run.ProjectPath)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(w, "Duration: %s\n", runDuration(run))
	fmt.Fprintf(w, "Tests:    %d total, %d passed, %d failed, %d skipped\n\n", run.Total, run.Passed, run.Failed, run.Skipped)

	bold.Fprintln(w, "Targets")
	for _, t := range run.Targets {
		if t.Success {
			color.New(color.FgGreen).Fprintf(w, "  PASS ")
		} else {
			color.New(color.FgRed).Fprintf(w, "  FAIL ")
		}
		fmt.Fprintln(w, t.Key)
	}

	if len(cases) == 0 {
		return
	}
	bold.Fprintln(w, "\nTests")
	for _, tc := range cases {
		mark := "✓"
		c := color.New(color.FgGreen)
		switch tc.Status {
		case results.StatusFailed:
			mark, c = "✗", color.New(color.FgRed)
		case results.StatusSkipped:
			mark, c = "○", color.New(color.FgYellow)
		}
		c.Fprintf(w, "  %s ", mark)
		fmt.Fprint(w, tc.FullName())
		if tc.DurationMS != nil {
			dim.Fprintf(w, " (%s)", fmtMillis(*tc.DurationMS))
		}
		fmt.Fprintln(w)
		if tc.Status == results.StatusFailed && tc.FailureMessage != "" {
			dim.Fprintf(w, "      %s\n", tc.FailureMessage)
		}
	}
}
