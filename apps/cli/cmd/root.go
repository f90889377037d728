package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag int // 0=warnings, 1=-v info, 2=-vv debug
	configFlag  string
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "xcrunner",
	Short: "Run Xcode and Swift package tests, one target at a time.",
	Long: `xcrunner runs xcodebuild schemes, test plans and Swift packages in
sequence, streams their progress as it happens, and reduces result bundles
into plain pass/fail/skip records.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr(), verboseFlag)
	},
}

// exitError carries the process exit status for a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err != nil {
		var ee *exitError
		// Test failures are already reported by the formatter
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for progress logs, -vv for debug)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("XCRUNNER_CONFIG", ""), "Path to config file (env: XCRUNNER_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("XCRUNNER_NO_COLOR", false), "Disable colored output (env: XCRUNNER_NO_COLOR)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(simulatorsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
