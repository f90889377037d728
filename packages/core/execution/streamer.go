package execution

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/cancel"
	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

// MaxLineSize is the longest output line relayed; a longer line stops that stream
const MaxLineSize = 1024 * 1024

// Streamer spawns one child process per call and relays its output as events
type Streamer struct {
	wrappers Wrappers
	env      []string
	logger   *slog.Logger
}

// Option configures a Streamer
type Option func(*Streamer)

// WithWrappers replaces the program wrapping table
func WithWrappers(w Wrappers) Option {
	return func(s *Streamer) {
		s.wrappers = w
	}
}

// WithEnv appends variables to the inherited environment of every child
func WithEnv(env []string) Option {
	return func(s *Streamer) {
		s.env = env
	}
}

// WithLogger sets the logger used for process lifecycle messages
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = l
	}
}

// NewStreamer creates a Streamer using DefaultWrappers unless overridden
func NewStreamer(opts ...Option) *Streamer {
	s := &Streamer{
		wrappers: DefaultWrappers(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Stream runs program with args in dir, emitting a Stdout or Stderr event for
// every line the child writes. It reports whether the process exited with
// status zero. An error is returned only when the process could not be
// spawned; a failing or cancelled process is reported as success=false.
//
// Stream does not return until both output readers have stopped.
func (s *Streamer) Stream(program string, args []string, dir string, sink events.Sink, token *cancel.Token) (bool, error) {
	name, argv := s.wrappers.Resolve(program, args)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return false, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return false, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	cmd := exec.Command(name, argv...)
	cmd.Dir = dir
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	s.logger.Info("spawning process", "program", name, "args", argv, "dir", dir)
	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return false, fmt.Errorf("failed to spawn process: %w", err)
	}
	// The child owns its copies of the write ends now.
	closeAll(stdoutW, stderrW)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relayLines(stdoutR, func(line string) events.Event { return events.Stdout{Line: line} }, sink, token)
	}()
	go func() {
		defer wg.Done()
		relayLines(stderrR, func(line string) events.Event { return events.Stderr{Line: line} }, sink, token)
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var success bool
	select {
	case <-token.Done():
		s.logger.Info("cancelling process", "program", name, "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-waitErr
	case err := <-waitErr:
		success = s.exitSucceeded(err, sink)
		s.logger.Info("process exited", "program", name, "success", success)
	}

	wg.Wait()
	return success, nil
}

func (s *Streamer) exitSucceeded(err error, sink events.Sink) bool {
	if err == nil {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	s.logger.Warn("waiting for process failed", "error", err)
	sink.Emit(events.Error{Message: fmt.Sprintf("Process error: %v", err)})
	return false
}

// relayLines forwards lines read from r until EOF, a read error, or
// cancellation. Lines still buffered when the token fires are dropped.
func relayLines(r *os.File, wrap func(string) events.Event, sink events.Sink, token *cancel.Token) {
	defer r.Close()

	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-token.Done():
			return
		case line, ok := <-lines:
			if !ok || token.Cancelled() {
				return
			}
			sink.Emit(wrap(line))
		}
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
