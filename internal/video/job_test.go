package video

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewJobRejectsShortPrompt(t *testing.T) {
	t.Parallel()

	for _, prompt := range []string{"", "   ", "ab", " a  "} {
		_, err := NewJob("1", JobRequest{Prompt: prompt}, time.Unix(0, 0))
		require.ErrorIs(t, err, ErrPromptRequired, "prompt %q", prompt)
	}
}

func TestNewJobStartsQueued(t *testing.T) {
	t.Parallel()

	now := time.Unix(100, 0).UTC()
	job, err := NewJob("7", JobRequest{Prompt: "  a cat on a skateboard ", Title: " Cats "}, now)
	require.NoError(t, err)
	require.Equal(t, JobStatusQueued, job.Status)
	require.Equal(t, "a cat on a skateboard", job.Prompt)
	require.Equal(t, "Cats", job.Title)
	require.Equal(t, JobTypeVideoGenerate, job.Type)
	require.Equal(t, 0, job.Progress)
	require.NotNil(t, job.Meta)
	require.Equal(t, now, job.CreatedAt)
	require.Equal(t, now, job.UpdatedAt)
	require.Nil(t, job.Result)
	require.Nil(t, job.Error)
}

func TestJobReachesDoneOnlyAtFullProgress(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0).UTC()
	job, err := NewJob("1", JobRequest{Prompt: "sunset timelapse"}, base)
	require.NoError(t, err)
	require.NoError(t, job.Start(base.Add(time.Second)))

	last := 0
	for i := 1; i < 20; i++ {
		done, err := job.Advance(5, "stub", base.Add(time.Duration(i+1)*time.Second))
		require.NoError(t, err)
		require.False(t, done)
		require.Equal(t, JobStatusRunning, job.Status)
		require.Greater(t, job.Progress, last)
		require.Nil(t, job.Result)
		last = job.Progress
	}
	done, err := job.Advance(5, "stub", base.Add(30*time.Second))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, JobStatusDone, job.Status)
	require.NotNil(t, job.Result)
	require.Equal(t, "stub", job.Result.Message)
	require.Nil(t, job.Result.VideoURL)
	require.NotNil(t, job.FinishedAt)
}

func TestAdvanceClampsProgress(t *testing.T) {
	t.Parallel()

	job := Job{Status: JobStatusRunning, Progress: 97}
	done, err := job.Advance(40, "ok", time.Unix(1, 0))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 100, job.Progress)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	t.Parallel()

	now := time.Unix(5, 0)
	for _, status := range []JobStatus{JobStatusDone, JobStatusFailed, JobStatusCanceled} {
		job := Job{Status: status}
		require.True(t, status.Terminal())
		require.True(t, errors.Is(job.Start(now), ErrInvalidTransition))
		_, err := job.Advance(5, "", now)
		require.ErrorIs(t, err, ErrInvalidTransition)
		require.ErrorIs(t, job.Fail("x", now), ErrInvalidTransition)
		require.ErrorIs(t, job.Cancel("x", now), ErrInvalidTransition)
		require.Equal(t, status, job.Status)
	}
}

func TestCancelQueuedAndRunning(t *testing.T) {
	t.Parallel()

	now := time.Unix(9, 0)
	queued := Job{Status: JobStatusQueued}
	require.NoError(t, queued.Cancel("canceled via API", now))
	require.Equal(t, JobStatusCanceled, queued.Status)
	require.Equal(t, "canceled via API", *queued.Error)

	running := Job{Status: JobStatusRunning, Progress: 40}
	require.NoError(t, running.Cancel("", now))
	require.Equal(t, JobStatusCanceled, running.Status)
	require.Nil(t, running.Error)
	require.Equal(t, 40, running.Progress)
}

func TestFailRequiresRunning(t *testing.T) {
	t.Parallel()

	job := Job{Status: JobStatusQueued}
	require.ErrorIs(t, job.Fail("boom", time.Unix(1, 0)), ErrInvalidTransition)
	require.NoError(t, job.Start(time.Unix(1, 0)))
	require.NoError(t, job.Fail("boom", time.Unix(2, 0)))
	require.Equal(t, JobStatusFailed, job.Status)
	require.Equal(t, "boom", *job.Error)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	msg := "err"
	orig := Job{Meta: map[string]any{"a": 1}, Error: &msg, Result: &JobResult{Message: "m"}}
	cp := orig.Clone()
	cp.Meta["a"] = 2
	*cp.Error = "changed"
	cp.Result.Message = "changed"
	require.Equal(t, 1, orig.Meta["a"])
	require.Equal(t, "err", *orig.Error)
	require.Equal(t, "m", orig.Result.Message)
}
