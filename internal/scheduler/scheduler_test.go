package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscan/scanner/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&stubJob{name: "flush", schedule: "@hourly"}))
	err := s.AddJob(&stubJob{name: "flush", schedule: "@daily"})
	assert.ErrorContains(t, err, "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.Nop())

	err := s.AddJob(&stubJob{name: "bad", schedule: "not a schedule"})
	assert.ErrorContains(t, err, "failed to schedule")
}

func TestRunJobRecordsHistory(t *testing.T) {
	s := New(logger.Nop())
	job := &stubJob{name: "flush", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flush"))
	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("flush")
		return err == nil && len(history.Results) == 1
	}, time.Second, 10*time.Millisecond)

	history, err := s.GetJobHistory("flush")
	require.NoError(t, err)
	assert.True(t, history.Results[0].Success)
	assert.EqualValues(t, 1, job.runs.Load())
}

func TestRunJobRetriesOnFailure(t *testing.T) {
	s := New(logger.Nop())
	s.retryDelay = time.Millisecond

	job := &stubJob{name: "flaky", schedule: "@hourly", err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("flaky")
		return err == nil && len(history.Results) == 1
	}, time.Second, 10*time.Millisecond)

	history, _ := s.GetJobHistory("flaky")
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "boom", history.Results[0].Error)
	assert.EqualValues(t, 4, job.runs.Load(), "initial attempt plus three retries")
}

func TestRunJobUnknownName(t *testing.T) {
	s := New(logger.Nop())
	assert.ErrorContains(t, s.RunJob("missing"), "not found")
}

func TestGetJobStats(t *testing.T) {
	s := New(logger.Nop())
	job := &stubJob{name: "flush", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flush"))
	require.Eventually(t, func() bool {
		return s.GetJobStats()["flush"].TotalRuns == 1
	}, time.Second, 10*time.Millisecond)

	stats := s.GetJobStats()["flush"]
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, "@hourly", stats.Schedule)
	assert.NotNil(t, stats.LastSuccess)
	assert.Equal(t, []string{"flush"}, s.GetAllJobs())
}
