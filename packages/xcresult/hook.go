package xcresult

import (
	"context"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/runner"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// CaseStore receives the cases extracted for a completed unit
type CaseStore interface {
	SetBundleCases(key string, cases []results.TestCase) bool
}

// UnitHook extracts the result bundle of every xcodebuild unit once it has
// finished and hands the cases to store. Units without a bundle (swift test)
// are left alone. An extraction failure is logged and the unit keeps the
// cases classified from its output.
func (e *Extractor) UnitHook(store CaseStore) runner.UnitHook {
	return func(ctx context.Context, res runner.UnitResult) error {
		if res.ResultBundlePath == "" {
			return nil
		}
		cases, err := e.Extract(ctx, res.ResultBundlePath)
		if err != nil {
			e.logger.Warn("result bundle unavailable", "run_id", res.RunID, "key", res.Unit.Key, "error", err)
			return nil
		}
		if len(cases) == 0 {
			return nil
		}
		if !store.SetBundleCases(res.Unit.Key, cases) {
			e.logger.Debug("no target for extracted cases", "key", res.Unit.Key)
		}
		return nil
	}
}
