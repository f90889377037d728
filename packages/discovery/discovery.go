package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandFunc runs name with args and returns its standard output
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Project is everything discovered under one directory
type Project struct {
	Path      string         `json:"path"`
	Schemes   []Scheme       `json:"schemes"`
	TestPlans []TestPlan     `json:"testPlans"`
	Packages  []SwiftPackage `json:"packages"`
}

// Discoverer runs the discovery tools
type Discoverer struct {
	run    CommandFunc
	logger *slog.Logger
}

// Option configures a Discoverer
type Option func(*Discoverer)

// WithCommand replaces the function used to run external tools
func WithCommand(fn CommandFunc) Option {
	return func(d *Discoverer) {
		d.run = fn
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = l
	}
}

// New creates a Discoverer that runs the real tools by default
func New(opts ...Option) *Discoverer {
	d := &Discoverer{run: runCommand}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Project discovers schemes, test plans and packages under path.
// A directory without an Xcode container has no schemes; that is not an error.
func (d *Discoverer) Project(ctx context.Context, path string) (*Project, error) {
	p := &Project{Path: path}

	schemes, err := d.Schemes(ctx, path)
	if err != nil {
		return nil, err
	}
	p.Schemes = schemes

	plans, err := TestPlans(path)
	if err != nil {
		return nil, err
	}
	p.TestPlans = plans

	p.Packages = d.Packages(ctx, path)
	return p, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s failed: %s", name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return out, nil
}
