// Package video defines the core job types and interfaces shared across subsystems.
package video

import (
	"time"
)

// JobStatus represents the lifecycle state of a video job.
type JobStatus string

// Job status values held in the job store.
const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
)

// JobTypeVideoGenerate is the only job type produced by the API today.
const JobTypeVideoGenerate = "video_generate"

// MinPromptLength is the shortest trimmed prompt accepted for a new job.
const MinPromptLength = 3

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobRequest carries the caller-supplied fields for a new job.
type JobRequest struct {
	Prompt   string         `json:"prompt"`
	Title    string         `json:"title,omitempty"`
	Language string         `json:"language,omitempty"`
	Voice    string         `json:"voice,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Source   *SheetRef      `json:"source,omitempty"`
}

// SheetRef points back at the spreadsheet row a job was created from.
type SheetRef struct {
	Row int `json:"rowIndex1Based"`
}

// Job is one simulated video generation task.
type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Status     JobStatus      `json:"status"`
	Title      string         `json:"title"`
	Prompt     string         `json:"prompt"`
	Language   string         `json:"language,omitempty"`
	Voice      string         `json:"voice,omitempty"`
	Meta       map[string]any `json:"meta"`
	Progress   int            `json:"progress"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Result     *JobResult     `json:"result"`
	Error      *string        `json:"error"`
	Source     *SheetRef      `json:"source,omitempty"`
}

// JobResult is attached to a job once it reaches done.
type JobResult struct {
	Message    string    `json:"message"`
	VideoURL   *string   `json:"videoUrl"`
	FinishedAt time.Time `json:"finishedAt"`
}

// ListOrder selects the creation-time ordering of ListJobs.
type ListOrder int

// Supported list orderings.
const (
	NewestFirst ListOrder = iota
	OldestFirst
)

// ListOptions bounds a ListJobs call.
type ListOptions struct {
	Limit  int
	Offset int
	Order  ListOrder
}

// Event is an operational log record submitted by clients.
type Event struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notification is published when a job changes state in a way downstream
// automations care about.
type Notification struct {
	Event string    `json:"event"`
	Job   Job       `json:"job"`
	At    time.Time `json:"at"`
}

// Notification event names.
const (
	EventJobCreated  = "job.created"
	EventJobDone     = "job.done"
	EventJobFailed   = "job.failed"
	EventJobCanceled = "job.canceled"
)
