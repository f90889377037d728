package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Kind identifies an event variant
type Kind string

const (
	KindRunStarted      Kind = "RunStarted"
	KindStdout          Kind = "Stdout"
	KindStderr          Kind = "Stderr"
	KindTestCompleted   Kind = "TestCompleted"
	KindProgress        Kind = "Progress"
	KindTargetCompleted Kind = "TargetCompleted"
	KindRunFinished     Kind = "RunFinished"
	KindError           Kind = "Error"
)

// Event is one entry of the test run event stream.
// The set of variants is closed; switch on the concrete type.
type Event interface {
	Kind() Kind
}

// RunStarted is emitted once, before any unit runs
type RunStarted struct {
	RunID string `json:"runId"`
}

// Stdout carries one raw line from a child's standard output
type Stdout struct {
	Line string `json:"line"`
}

// Stderr carries one raw line from a child's standard error
type Stderr struct {
	Line string `json:"line"`
}

// TestCompleted is emitted when a raw output line is recognized as a finished test case
type TestCompleted struct {
	Suite      string `json:"suite"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"durationMs"`
}

// Progress reports how many run units have finished out of the scheduled total
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// TargetCompleted reports the outcome of one run unit, keyed by the unit key
type TargetCompleted struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
}

// RunFinished is the terminal event of a run
type RunFinished struct {
	RunID   string `json:"runId"`
	Success bool   `json:"success"`
}

// Error reports a process-level failure
type Error struct {
	Message string `json:"message"`
}

func (RunStarted) Kind() Kind      { return KindRunStarted }
func (Stdout) Kind() Kind          { return KindStdout }
func (Stderr) Kind() Kind          { return KindStderr }
func (TestCompleted) Kind() Kind   { return KindTestCompleted }
func (Progress) Kind() Kind        { return KindProgress }
func (TargetCompleted) Kind() Kind { return KindTargetCompleted }
func (RunFinished) Kind() Kind     { return KindRunFinished }
func (Error) Kind() Kind           { return KindError }

// Marshal encodes an event as a JSON object tagged with its kind:
//
//	{"type":"TargetCompleted","key":"App","success":true}
func Marshal(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("cannot marshal nil event")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}

	out := make([]byte, 0, len(body)+len(ev.Kind())+12)
	out = append(out, `{"type":"`...)
	out = append(out, string(ev.Kind())...)
	out = append(out, '"')
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Sink receives events as they occur.
// Implementations must be safe for concurrent use: the stdout and stderr
// readers of a running process emit from separate goroutines.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ev Event)

// Emit calls f(ev)
func (f SinkFunc) Emit(ev Event) {
	f(ev)
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

type multiSink []Sink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Tee returns a sink that forwards every event to each of sinks in order
func Tee(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Channel delivers events over a buffered channel. Emit blocks once the
// buffer is full, so a slow consumer applies backpressure to the producer.
type Channel struct {
	ch   chan Event
	once sync.Once
}

// NewChannel creates a channel sink with the given buffer size
func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Emit sends ev to the consumer
func (c *Channel) Emit(ev Event) {
	c.ch <- ev
}

// Events returns the receive side of the channel
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Close closes the channel. It must only be called once the producer has
// returned; emitting after Close panics.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.ch)
	})
}
