// Package memory provides in-memory stores for jobs, blobs and events.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bossmind/videomaker/internal/video"
)

// JobStore keeps every job for the lifetime of the process.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	seq  int64
}

type entry struct {
	job video.Job
	seq int64
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*entry),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job video.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, video.ErrJobExists)
	}
	s.seq++
	s.jobs[job.ID] = &entry{job: job.Clone(), seq: s.seq}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (video.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[jobID]
	if !ok {
		return video.Job{}, video.ErrJobNotFound
	}
	return e.job.Clone(), nil
}

// ListJobs returns jobs ordered by creation time. Ties keep insertion order.
// A non-positive limit returns every job after offset.
func (s *JobStore) ListJobs(_ context.Context, opts video.ListOptions) ([]video.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, k int) bool {
		a, b := entries[i], entries[k]
		if opts.Order == video.OldestFirst {
			return before(a, b)
		}
		return before(b, a)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return []video.Job{}, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}

	out := make([]video.Job, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.job.Clone())
	}
	return out, nil
}

// UpdateJob applies fn to the job under the store lock.
func (s *JobStore) UpdateJob(_ context.Context, jobID string, fn func(*video.Job) error) (video.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok {
		return video.Job{}, video.ErrJobNotFound
	}
	working := e.job.Clone()
	if err := fn(&working); err != nil {
		return e.job.Clone(), err
	}
	working.ID = jobID
	e.job = working
	return working.Clone(), nil
}

// Count returns the number of stored jobs.
func (s *JobStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}

func before(a, b *entry) bool {
	if a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.seq < b.seq
	}
	return a.job.CreatedAt.Before(b.job.CreatedAt)
}
