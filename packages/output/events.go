package output

import (
	"io"
	"os"
	"sync"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// EventsFormatter writes every run event as one JSON line while the run is in progress
type EventsFormatter struct {
	mu     sync.Mutex
	writer io.Writer
}

type EventsOption func(*EventsFormatter)

func NewEventsFormatter(opts ...EventsOption) *EventsFormatter {
	f := &EventsFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func EventsWithWriter(w io.Writer) EventsOption {
	return func(f *EventsFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

func (f *EventsFormatter) Emit(ev events.Event) {
	line, err := events.Marshal(ev)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.writer.Write(append(line, '\n'))
}

// FormatReport is a no-op; the stream already ended with RunFinished
func (f *EventsFormatter) FormatReport(results.Report) {}

// FormatError reports err as an Error event
func (f *EventsFormatter) FormatError(err error) {
	f.Emit(events.Error{Message: err.Error()})
}

func (f *EventsFormatter) FormatHeader(version string) {}
