package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/xcrunner/packages/events"
)

func TestStatusFromString(t *testing.T) {
	assert.Equal(t, StatusPassed, StatusFromString("passed"))
	assert.Equal(t, StatusFailed, StatusFromString("failed"))
	assert.Equal(t, StatusSkipped, StatusFromString("skipped"))
	assert.Equal(t, StatusSkipped, StatusFromString("Expected Failure"))
	assert.Equal(t, StatusSkipped, StatusFromString(""))
}

func TestTestCase(t *testing.T) {
	tc := TestCase{Suite: "LoginTests", Name: "testLogin", Status: StatusPassed}
	_, ok := tc.Duration()
	assert.False(t, ok)
	assert.Equal(t, "LoginTests.testLogin", tc.FullName())

	tc.DurationMS = Millis(1250)
	d, ok := tc.Duration()
	assert.True(t, ok)
	assert.Equal(t, 1250*time.Millisecond, d)

	assert.Equal(t, "testLogin", TestCase{Name: "testLogin"}.FullName())
}

func TestFromEvent(t *testing.T) {
	tc := FromEvent(events.TestCompleted{Suite: "S", Name: "M", Status: "failed", DurationMS: 12})
	assert.Equal(t, "S", tc.Suite)
	assert.Equal(t, "M", tc.Name)
	assert.Equal(t, StatusFailed, tc.Status)
	require.NotNil(t, tc.DurationMS)
	assert.Equal(t, int64(12), *tc.DurationMS)
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil)
		assert.Equal(t, 0, s.Total)
		assert.Equal(t, 0, s.Timed)
		assert.Zero(t, s.P50)
		assert.True(t, s.AllPassed())
	})

	t.Run("counts and percentiles", func(t *testing.T) {
		var cases []TestCase
		for i := 1; i <= 100; i++ {
			cases = append(cases, TestCase{Name: "t", Status: StatusPassed, DurationMS: Millis(int64(i))})
		}
		cases = append(cases,
			TestCase{Name: "broken", Status: StatusFailed, DurationMS: Millis(0)},
			TestCase{Name: "ignored", Status: StatusSkipped},
		)

		s := Summarize(cases)
		assert.Equal(t, 102, s.Total)
		assert.Equal(t, 100, s.Passed)
		assert.Equal(t, 1, s.Failed)
		assert.Equal(t, 1, s.Skipped)
		assert.Equal(t, 101, s.Timed)
		assert.False(t, s.AllPassed())

		assert.Equal(t, 5050*time.Millisecond, s.Duration)
		assert.Equal(t, 100*time.Millisecond, s.Max)
		assert.Equal(t, 5050*time.Millisecond/101, s.Mean)
		assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
		assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
		assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))

		require.Len(t, s.Slowest, SlowestLimit)
		assert.Equal(t, int64(100), *s.Slowest[0].DurationMS)
		assert.Equal(t, int64(96), *s.Slowest[4].DurationMS)
	})
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	c.Emit(events.RunStarted{RunID: "r1"})
	c.Emit(events.Stdout{Line: "noise"})
	c.Emit(events.TestCompleted{Suite: "A", Name: "one", Status: "passed", DurationMS: 5})
	c.Emit(events.TestCompleted{Suite: "A", Name: "two", Status: "failed", DurationMS: 7})
	c.Emit(events.TargetCompleted{Key: "App", Success: false})
	c.Emit(events.Progress{Completed: 1, Total: 2})
	c.Emit(events.TargetCompleted{Key: "Pkg", Success: true})
	c.Emit(events.RunFinished{RunID: "r1", Success: false})

	r := c.Report()
	assert.Equal(t, "r1", r.RunID)
	assert.True(t, r.Finished)
	assert.False(t, r.Success)
	assert.Equal(t, time.Second, r.Duration())
	require.Len(t, r.Targets, 2)

	assert.Equal(t, "App", r.Targets[0].Key)
	assert.Equal(t, SourceOutput, r.Targets[0].Source)
	assert.Len(t, r.Targets[0].Cases, 2)
	assert.Empty(t, r.Targets[1].Cases)
	assert.Equal(t, CaseSource(""), r.Targets[1].Source)

	ok := c.SetBundleCases("App", []TestCase{
		{Suite: "A", Name: "one", Status: StatusPassed},
		{Suite: "A", Name: "two", Status: StatusFailed, FailureMessage: "XCTAssertEqual failed"},
		{Suite: "A", Name: "three", Status: StatusSkipped},
	})
	assert.True(t, ok)
	assert.False(t, c.SetBundleCases("Missing", nil))

	r2 := c.Report()
	assert.Equal(t, SourceBundle, r2.Targets[0].Source)
	assert.Len(t, r2.Cases(), 3)
	s := r2.Summary()
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)

	// earlier snapshots are unaffected
	assert.Len(t, r.Cases(), 2)
}

func TestReport_Passed(t *testing.T) {
	assert.False(t, (&Report{}).Passed())
	assert.True(t, (&Report{Finished: true, Success: true}).Passed())
	assert.False(t, (&Report{Finished: true, Success: true, Errors: []string{"boom"}}).Passed())
	assert.Zero(t, (&Report{StartedAt: time.Now()}).Duration())
}
