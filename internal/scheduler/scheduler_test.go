package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	err      error
	ran      chan struct{}
	runs     int
}

func newFakeJob(name string, err error) *fakeJob {
	return &fakeJob{
		name:     name,
		schedule: "0 0 9 * * *",
		err:      err,
		ran:      make(chan struct{}, 10),
	}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	j.ran <- struct{}{}
	return j.err
}

func waitForRun(t *testing.T, j *fakeJob) {
	t.Helper()
	select {
	case <-j.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s never ran", j.name)
	}
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(newFakeJob("analysis", nil)))
	err := s.AddJob(newFakeJob("analysis", nil))
	assert.ErrorContains(t, err, "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	job := newFakeJob("broken", nil)
	job.schedule = "not a cron expression"
	assert.Error(t, s.AddJob(job))
}

func TestRunJobRecordsSuccess(t *testing.T) {
	s := New(logger.NewNop())
	job := newFakeJob("analysis", nil)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("analysis"))
	waitForRun(t, job)

	assert.Eventually(t, func() bool {
		history, err := s.GetJobHistory("analysis")
		return err == nil && len(history.Results) == 1 && history.Results[0].Success
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedJobIsNotRetried(t *testing.T) {
	s := New(logger.NewNop())
	job := newFakeJob("analysis", fmt.Errorf("upstream down"))
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("analysis"))
	waitForRun(t, job)

	assert.Eventually(t, func() bool {
		history, err := s.GetJobHistory("analysis")
		return err == nil && len(history.Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// One attempt, one failure, nothing more
	assert.Equal(t, 1, job.runs)

	history, err := s.GetJobHistory("analysis")
	require.NoError(t, err)
	assert.False(t, history.Results[0].Success)
	assert.Contains(t, history.Results[0].Error, "upstream down")
}

func TestRunJobUnknownName(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunJob("ghost"))
}

func TestGetJobStats(t *testing.T) {
	s := New(logger.NewNop())
	job := newFakeJob("analysis", nil)
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("analysis"))
	waitForRun(t, job)

	assert.Eventually(t, func() bool {
		stats := s.GetJobStats()
		st, ok := stats["analysis"]
		return ok && st.TotalRuns == 1 && st.SuccessCount == 1 && st.LastRun != nil
	}, 2*time.Second, 10*time.Millisecond)

	stats := s.GetJobStats()
	assert.Equal(t, "0 0 9 * * *", stats["analysis"].Schedule)
	assert.InDelta(t, 1.0, stats["analysis"].SuccessRate, 1e-9)
}

func TestJobHistoryCapped(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(10), 10)
}
