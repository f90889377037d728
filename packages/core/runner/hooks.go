package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// UnitResult describes a unit that has just finished
type UnitResult struct {
	RunID            string
	Unit             RunUnit
	Success          bool
	Dir              string
	ResultBundlePath string
}

// UnitHook runs after a unit's TargetCompleted event has been emitted.
// Hooks are not called for a unit interrupted by cancellation. A hook error
// is logged and never changes the run outcome.
type UnitHook func(ctx context.Context, res UnitResult) error

func (m *Manager) runHooks(ctx context.Context, res UnitResult) {
	for _, hook := range m.hooks {
		if err := hook(ctx, res); err != nil {
			m.logger.Warn("unit hook failed", "run_id", res.RunID, "key", res.Unit.Key, "error", err)
		}
	}
}

// CommandHook returns a hook that runs command through sh -c in the unit's
// working directory. The unit is described to the command through
// XCRUNNER_RUN_ID, XCRUNNER_UNIT_KEY, XCRUNNER_UNIT_SUCCESS and
// XCRUNNER_RESULT_BUNDLE.
func CommandHook(command string) UnitHook {
	command = strings.TrimSpace(command)
	return func(ctx context.Context, res UnitResult) error {
		if command == "" {
			return nil
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = res.Dir
		cmd.Env = append(os.Environ(),
			"XCRUNNER_RUN_ID="+res.RunID,
			"XCRUNNER_UNIT_KEY="+res.Unit.Key,
			"XCRUNNER_UNIT_SUCCESS="+strconv.FormatBool(res.Success),
			"XCRUNNER_RESULT_BUNDLE="+res.ResultBundlePath,
		)

		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("command %q failed: %v\nOutput: %s", command, err, string(output))
		}
		return nil
	}
}
