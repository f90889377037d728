package xcresult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// CommandFunc runs name with args and returns its standard output
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Extractor queries result bundles through xcresulttool
type Extractor struct {
	run    CommandFunc
	legacy bool
	logger *slog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithCommand replaces the function used to run xcrun
func WithCommand(fn CommandFunc) Option {
	return func(e *Extractor) {
		e.run = fn
	}
}

// WithLegacy selects `xcresulttool get object --legacy`, required by Xcode 16
// and later for the object graph format
func WithLegacy(legacy bool) Option {
	return func(e *Extractor) {
		e.legacy = legacy
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// NewExtractor creates an Extractor that runs the real xcrun by default
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{run: runCommand}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract returns the test cases recorded in the bundle at bundlePath.
//
// Only the first query can fail the call: when xcrun cannot be run, exits
// non-zero, or prints something other than JSON. When the root object only
// references its test summaries (actions[].actionResult.testsRef), each
// reference is fetched in turn; a reference that cannot be fetched is
// logged and skipped. Failed cases without a message have their full
// summary fetched the same way.
func (e *Extractor) Extract(ctx context.Context, bundlePath string) ([]results.TestCase, error) {
	data, err := e.query(ctx, bundlePath, "")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}

	root := gjson.ParseBytes(data)
	leaves := walkSummaries(root)
	if !root.Get("testPlanRunSummaries").Exists() {
		for _, ref := range testsRefs(root) {
			doc, err := e.queryDocument(ctx, bundlePath, ref)
			if err != nil {
				e.logger.Warn("skipping test summary reference", "bundle", bundlePath, "id", ref, "error", err)
				continue
			}
			leaves = append(leaves, walkSummaries(doc)...)
		}
	}

	cases := make([]results.TestCase, len(leaves))
	for i, l := range leaves {
		if l.tc.Status == results.StatusFailed && l.tc.FailureMessage == "" && l.summaryRef != "" {
			e.fillFailure(ctx, bundlePath, l.summaryRef, &l.tc)
		}
		cases[i] = l.tc
	}
	return cases, nil
}

func (e *Extractor) fillFailure(ctx context.Context, bundlePath, ref string, tc *results.TestCase) {
	doc, err := e.queryDocument(ctx, bundlePath, ref)
	if err != nil {
		e.logger.Debug("failure summary unavailable", "test", tc.FullName(), "id", ref, "error", err)
		return
	}
	applyFailure(tc, doc)
}

func (e *Extractor) queryDocument(ctx context.Context, bundlePath, id string) (gjson.Result, error) {
	data, err := e.query(ctx, bundlePath, id)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrInvalidDocument
	}
	return gjson.ParseBytes(data), nil
}

func (e *Extractor) query(ctx context.Context, bundlePath, id string) ([]byte, error) {
	args := QueryArgs(bundlePath, id, e.legacy)
	e.logger.Debug("querying result bundle", "args", args)
	out, err := e.run(ctx, "xcrun", args...)
	if err != nil {
		return nil, fmt.Errorf("xcresulttool failed: %w", err)
	}
	return out, nil
}

// QueryArgs builds the xcrun arguments for reading the object with the given
// id from a bundle, or its root object when id is empty
func QueryArgs(bundlePath, id string, legacy bool) []string {
	args := []string{"xcresulttool", "get"}
	if legacy {
		args = append(args, "object", "--legacy")
	}
	args = append(args, "--format", "json", "--path", bundlePath)
	if id != "" {
		args = append(args, "--id", id)
	}
	return args
}

func testsRefs(root gjson.Result) []string {
	var refs []string
	for _, action := range values(root, "actions") {
		if id, ok := str(action, "actionResult.testsRef.id"); ok && id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return nil, fmt.Errorf("%s: %w", msg, err)
			}
		}
		return nil, err
	}
	return out, nil
}
