package video

import (
	"context"
	"time"
)

// JobStore holds jobs for the lifetime of the process.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobs(ctx context.Context, opts ListOptions) ([]Job, error)
	// UpdateJob applies fn to the stored job atomically and returns the result.
	// The job is left untouched when fn returns an error.
	UpdateJob(ctx context.Context, jobID string, fn func(*Job) error) (Job, error)
	Count(ctx context.Context) (int, error)
}

// BlobStore writes generated artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes job notifications to downstream automations.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// EventStore persists operational events posted by clients.
type EventStore interface {
	InsertEvent(ctx context.Context, evt Event) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
