package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/output"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
	"github.com/abdul-hamid-achik/xcrunner/packages/xcresult"
)

var (
	resultsOutputFlag string
	resultsLegacyFlag bool
)

var resultsCmd = &cobra.Command{
	Use:   "results <bundle.xcresult>...",
	Short: "Read test results from result bundles",
	Long: `Read the per-test results of one or more .xcresult bundles and print
them in any output format. Each bundle is reported as one target.

Examples:
  xcrunner results Test.xcresult
  xcrunner results unit-1/result.xcresult unit-2/result.xcresult -o junit`,
	Args: cobra.MinimumNArgs(1),
	RunE: resultsCommand,
}

func init() {
	resultsCmd.Flags().StringVarP(&resultsOutputFlag, "output", "o", "console", "Output format: "+strings.Join(output.Formats(), ", "))
	resultsCmd.Flags().BoolVar(&resultsLegacyFlag, "legacy-results", getEnvBool("XCRUNNER_LEGACY_RESULTS", false), "Query bundles with xcresulttool --legacy (env: XCRUNNER_LEGACY_RESULTS)")
}

// bundleKey names a bundle target after the bundle, or its directory when
// the bundle has the generic name result.xcresult
func bundleKey(path string) string {
	clean := filepath.Clean(path)
	name := strings.TrimSuffix(filepath.Base(clean), ".xcresult")
	if name == "result" {
		if dir := filepath.Base(filepath.Dir(clean)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	return name
}

// bundleTarget turns the cases of one bundle into a finished target
func bundleTarget(key string, cases []results.TestCase) results.TargetResult {
	t := results.TargetResult{Key: key, Success: true, Source: results.SourceBundle, Cases: cases}
	for _, tc := range cases {
		if tc.Status == results.StatusFailed {
			t.Success = false
			break
		}
	}
	return t
}

func resultsCommand(cmd *cobra.Command, args []string) error {
	formatter, err := output.New(resultsOutputFlag, output.Options{
		Writer:  cmd.OutOrStdout(),
		Verbose: verboseFlag > 0,
		NoColor: noColorFlag,
	})
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	extractor := xcresult.NewExtractor(xcresult.WithLegacy(resultsLegacyFlag))
	now := time.Now()
	report := results.Report{StartedAt: now, FinishedAt: now, Finished: true, Success: true}
	for _, bundle := range args {
		cases, err := extractor.Extract(cmd.Context(), bundle)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", bundle, err))
			report.Success = false
			continue
		}
		target := bundleTarget(bundleKey(bundle), cases)
		report.Success = report.Success && target.Success
		report.Targets = append(report.Targets, target)
	}

	formatter.FormatReport(report)
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	switch {
	case len(report.Errors) > 0:
		return withExitCode(ExitToolError, nil)
	case !report.Passed():
		return withExitCode(ExitTestFailure, nil)
	}
	return nil
}
