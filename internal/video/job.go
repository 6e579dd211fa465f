package video

import (
	"fmt"
	"strings"
	"time"
)

// NewJob validates req and builds a queued job stamped with now.
func NewJob(id string, req JobRequest, now time.Time) (Job, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if len([]rune(prompt)) < MinPromptLength {
		return Job{}, ErrPromptRequired
	}
	meta := req.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	return Job{
		ID:        id,
		Type:      JobTypeVideoGenerate,
		Status:    JobStatusQueued,
		Title:     strings.TrimSpace(req.Title),
		Prompt:    prompt,
		Language:  strings.TrimSpace(req.Language),
		Voice:     strings.TrimSpace(req.Voice),
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    req.Source,
	}, nil
}

// Start moves a queued job to running.
func (j *Job) Start(now time.Time) error {
	if j.Status != JobStatusQueued {
		return transitionError(j.Status, JobStatusRunning)
	}
	j.Status = JobStatusRunning
	j.StartedAt = timePtr(now)
	j.UpdatedAt = now
	return nil
}

// Advance adds step to a running job's progress. Once progress reaches 100
// the job is marked done with a result carrying message. It reports whether
// the job finished.
func (j *Job) Advance(step int, message string, now time.Time) (bool, error) {
	if j.Status != JobStatusRunning {
		return false, transitionError(j.Status, JobStatusRunning)
	}
	if step < 0 {
		step = 0
	}
	j.Progress = min(100, j.Progress+step)
	j.UpdatedAt = now
	if j.Progress < 100 {
		return false, nil
	}
	j.Status = JobStatusDone
	j.FinishedAt = timePtr(now)
	j.Result = &JobResult{
		Message:    message,
		FinishedAt: now,
	}
	return true, nil
}

// Fail marks a running job failed with reason.
func (j *Job) Fail(reason string, now time.Time) error {
	if j.Status != JobStatusRunning {
		return transitionError(j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.Error = &reason
	j.FinishedAt = timePtr(now)
	j.UpdatedAt = now
	return nil
}

// Cancel stops a queued or running job.
func (j *Job) Cancel(reason string, now time.Time) error {
	if j.Status.Terminal() {
		return transitionError(j.Status, JobStatusCanceled)
	}
	j.Status = JobStatusCanceled
	if reason != "" {
		j.Error = &reason
	}
	j.FinishedAt = timePtr(now)
	j.UpdatedAt = now
	return nil
}

// Clone returns a copy that shares no mutable state with j.
func (j Job) Clone() Job {
	cp := j
	if j.Meta != nil {
		cp.Meta = make(map[string]any, len(j.Meta))
		for k, v := range j.Meta {
			cp.Meta[k] = v
		}
	}
	if j.StartedAt != nil {
		cp.StartedAt = timePtr(*j.StartedAt)
	}
	if j.FinishedAt != nil {
		cp.FinishedAt = timePtr(*j.FinishedAt)
	}
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Source != nil {
		s := *j.Source
		cp.Source = &s
	}
	return cp
}

func transitionError(from, to JobStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func timePtr(t time.Time) *time.Time {
	ts := t
	return &ts
}
