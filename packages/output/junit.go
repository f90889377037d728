package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one run unit
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
	SystemErr string          `xml:"system-err,omitempty"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	File      string        `xml:"file,attr,omitempty"`
	Line      int           `xml:"line,attr,omitempty"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats a run report as JUnit XML
type JUnitFormatter struct {
	writer io.Writer
	report *results.Report
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

// Emit ignores live events; the report carries everything
func (f *JUnitFormatter) Emit(events.Event) {}

func (f *JUnitFormatter) FormatReport(report results.Report) {
	f.report = &report
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in the report
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

func (f *JUnitFormatter) suite(t results.TargetResult, timestamp string) JUnitTestSuite {
	suite := JUnitTestSuite{
		Name:      t.Key,
		Tests:     len(t.Cases),
		Timestamp: timestamp,
		TestCases: make([]JUnitTestCase, 0, len(t.Cases)),
	}

	for _, c := range t.Cases {
		seconds := durationMS(c) / 1000
		suite.Time += seconds
		tc := JUnitTestCase{
			Name:      c.Name,
			ClassName: c.Suite,
			Time:      seconds,
		}
		if c.Location != nil {
			tc.File = c.Location.File
			tc.Line = c.Location.Line
		}

		switch c.Status {
		case results.StatusSkipped:
			suite.Skipped++
			tc.Skipped = &JUnitSkipped{}
		case results.StatusFailed:
			suite.Failures++
			msg := c.FailureMessage
			if msg == "" {
				msg = "Test failed"
			}
			var content strings.Builder
			content.WriteString(c.FailureMessage)
			if loc := locationString(c.Location); loc != "" {
				fmt.Fprintf(&content, "\n%s", loc)
			}
			tc.Failure = &JUnitFailure{
				Message: msg,
				Type:    "XCTestFailure",
				Content: strings.TrimSpace(content.String()),
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	// A unit that failed without a failing case (build error, crash) is an error
	if !t.Success && suite.Failures == 0 {
		suite.Errors = 1
		suite.SystemErr = fmt.Sprintf("%s did not succeed", t.Key)
	}
	return suite
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush() error {
	if f.report == nil {
		return nil
	}
	timestamp := f.report.StartedAt.Format(time.RFC3339)

	suites := JUnitTestSuites{
		Name:       "xcrunner",
		Time:       f.report.Duration().Seconds(),
		Timestamp:  timestamp,
		TestSuites: make([]JUnitTestSuite, 0, len(f.report.Targets)),
	}
	for _, t := range f.report.Targets {
		suite := f.suite(t, timestamp)
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.Skipped += suite.Skipped
		suites.TestSuites = append(suites.TestSuites, suite)
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
