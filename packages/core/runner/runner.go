package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/cancel"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/execution"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/parser"
	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

// ScratchDirName is the directory under the system temp dir that holds
// per-run result bundles
const ScratchDirName = "xcode-test-runner"

var (
	// ErrNoActiveRun is returned by Cancel when nothing is running
	ErrNoActiveRun = errors.New("no active run to cancel")
	// ErrRunInProgress is returned by Run when another run is active
	ErrRunInProgress = errors.New("a run is already in progress")
)

// ProcessStreamer runs one child process and relays its output to sink
type ProcessStreamer interface {
	Stream(program string, args []string, dir string, sink events.Sink, token *cancel.Token) (bool, error)
}

type Config struct {
	// ScratchRoot holds one directory per run; defaults to $TMPDIR/xcode-test-runner
	ScratchRoot string
}

func (c *Config) scratchRoot() string {
	if c.ScratchRoot != "" {
		return c.ScratchRoot
	}
	return filepath.Join(os.TempDir(), ScratchDirName)
}

type activeRun struct {
	id    string
	token *cancel.Token
}

// Manager owns the single active run slot
type Manager struct {
	config   *Config
	streamer ProcessStreamer
	newID    func() string
	hooks    []UnitHook
	logger   *slog.Logger

	mu     sync.Mutex
	active *activeRun
}

// Option configures a Manager
type Option func(*Manager)

// WithStreamer replaces the process streamer
func WithStreamer(s ProcessStreamer) Option {
	return func(m *Manager) {
		m.streamer = s
	}
}

// WithIDGenerator replaces the run identifier source
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// WithUnitHook registers a hook that runs after every completed unit
func WithUnitHook(h UnitHook) Option {
	return func(m *Manager) {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(cfg *Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}

	m := &Manager{
		config: cfg,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.streamer == nil {
		m.streamer = execution.NewStreamer(execution.WithLogger(m.logger))
	}
	return m
}

// Run executes req to completion and returns its run identifier.
//
// Events are delivered to sink as they happen; sink must accept concurrent
// Emit calls. Cancelling ctx has the same effect as Cancel. Neither
// cancellation nor failing tests produce an error: an error means the run
// could not be carried out (invalid request, another run active, a tool that
// could not be spawned).
func (m *Manager) Run(ctx context.Context, req *RunRequest, sink events.Sink) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if sink == nil {
		sink = events.Discard
	}

	runID := m.newID()
	token := cancel.NewToken()
	if err := m.install(runID, token); err != nil {
		return "", err
	}
	defer m.release(runID)

	stop := token.Bind(ctx)
	defer stop()
	if ctx.Err() != nil {
		token.Cancel()
	}

	log := m.logger.With("run_id", runID)
	sink.Emit(events.RunStarted{RunID: runID})

	scratch := filepath.Join(m.config.scratchRoot(), runID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		sink.Emit(events.Error{Message: fmt.Sprintf("Failed to create temp dir: %v", err)})
		return runID, fmt.Errorf("creating scratch directory: %w", err)
	}

	units := req.Units()
	log.Info("run started", "units", len(units), "scratch", scratch)

	overall := true
	bundles := make(map[string]bool)
	for i, unit := range units {
		if token.Cancelled() {
			log.Info("run cancelled", "skipped", len(units)-i)
			break
		}

		inv := req.Invocation(unit, scratch)
		if inv.ResultBundlePath != "" && bundles[inv.ResultBundlePath] {
			// xcodebuild refuses to overwrite a bundle; give repeated schemes their own directory
			dir := filepath.Join(scratch, "unit-"+strconv.Itoa(i+1))
			if err := os.MkdirAll(dir, 0o755); err == nil {
				inv = req.Invocation(unit, dir)
			}
		}
		bundles[inv.ResultBundlePath] = true

		log.Debug("running unit", "key", unit.Key, "program", inv.Program)
		unitSink := classifyingSink{next: sink, classifier: parser.ForProgram(inv.Program)}
		success, err := m.streamer.Stream(inv.Program, inv.Args, inv.Dir, unitSink, token)
		if err != nil {
			sink.Emit(events.Error{Message: err.Error()})
			return runID, fmt.Errorf("running %s: %w", unit.Key, err)
		}

		sink.Emit(events.TargetCompleted{Key: unit.Key, Success: success})
		sink.Emit(events.Progress{Completed: i + 1, Total: len(units)})
		log.Info("unit finished", "key", unit.Key, "success", success)

		if !token.Cancelled() {
			m.runHooks(ctx, UnitResult{
				RunID:            runID,
				Unit:             unit,
				Success:          success,
				Dir:              inv.Dir,
				ResultBundlePath: inv.ResultBundlePath,
			})
		}

		if !success {
			overall = false
			if req.StopOnFirstFailure {
				log.Info("stopping after first failure", "key", unit.Key, "skipped", len(units)-i-1)
				break
			}
		}
	}

	sink.Emit(events.RunFinished{RunID: runID, Success: overall})
	log.Info("run finished", "success", overall)
	return runID, nil
}

// Cancel signals the active run. It returns ErrNoActiveRun when there is none.
// Cancelling an already cancelled run is a no-op.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveRun
	}
	m.active.token.Cancel()
	return nil
}

// ActiveRunID reports the identifier of the run in progress
func (m *Manager) ActiveRunID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return "", false
	}
	return m.active.id, true
}

func (m *Manager) install(runID string, token *cancel.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return fmt.Errorf("%w: %s", ErrRunInProgress, m.active.id)
	}
	m.active = &activeRun{id: runID, token: token}
	return nil
}

func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.id == runID {
		m.active = nil
	}
}

// classifyingSink forwards every event and adds a TestCompleted after each
// output line the classifier recognizes
type classifyingSink struct {
	next       events.Sink
	classifier parser.Classifier
}

func (s classifyingSink) Emit(ev events.Event) {
	s.next.Emit(ev)

	var line string
	switch e := ev.(type) {
	case events.Stdout:
		line = e.Line
	case events.Stderr:
		line = e.Line
	default:
		return
	}
	if tc, ok := s.classifier.Classify(line); ok {
		s.next.Emit(tc)
	}
}
