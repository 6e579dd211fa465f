// Package publisher fans job notifications out to downstream automations.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bossmind/videomaker/internal/video"
)

// Multi publishes to every wrapped publisher and joins their errors.
type Multi struct {
	targets []video.Publisher
}

// NewMulti drops nil publishers and returns a fan-out publisher.
func NewMulti(targets ...video.Publisher) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

// Len reports how many publishers receive messages.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Publish sends payload to every target. The returned ID joins the IDs of the
// publishers that succeeded.
func (m *Multi) Publish(ctx context.Context, topic string, payload any) (string, error) {
	ids := make([]string, 0, len(m.targets))
	var errs []error
	for _, t := range m.targets {
		id, err := t.Publish(ctx, topic, payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return strings.Join(ids, ","), errors.Join(errs...)
}

// Notify publishes a job notification when pub is configured.
func Notify(ctx context.Context, pub video.Publisher, topic, event string, job video.Job, at time.Time) error {
	if pub == nil {
		return nil
	}
	if _, err := pub.Publish(ctx, topic, video.Notification{Event: event, Job: job, At: at}); err != nil {
		return fmt.Errorf("publish %s for job %s: %w", event, job.ID, err)
	}
	return nil
}
