package history

import (
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// RunFromReport builds the runs row for a collected report. scope is a short
// human description of what was run, for listings.
func RunFromReport(r results.Report, projectPath, scope string, cancelled bool) Run {
	summary := r.Summary()
	run := Run{
		ID:          r.RunID,
		ProjectPath: projectPath,
		Scope:       scope,
		StartedAt:   r.StartedAt,
		Total:       summary.Total,
		Passed:      summary.Passed,
		Failed:      summary.Failed,
		Skipped:     summary.Skipped,
	}

	switch {
	case cancelled:
		run.Status = RunCancelled
	case !r.Finished:
		run.Status = RunFailed
	case r.Passed():
		run.Status = RunPassed
	default:
		run.Status = RunFailed
	}

	if r.Finished {
		finished := r.FinishedAt
		run.FinishedAt = &finished
		run.DurationMS = results.Millis(r.Duration().Milliseconds())
	}

	for _, t := range r.Targets {
		run.Targets = append(run.Targets, TargetOutcome{Key: t.Key, Success: t.Success})
	}
	return run
}
