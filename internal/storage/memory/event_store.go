package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/video"
)

// EventStore keeps the most recent operational events when no database is configured.
type EventStore struct {
	mu     sync.Mutex
	events []video.Event
	max    int
	logger *zap.Logger
}

// NewEventStore keeps at most max events; older entries are discarded.
func NewEventStore(max int, logger *zap.Logger) *EventStore {
	if max <= 0 {
		max = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStore{max: max, logger: logger}
}

// InsertEvent records evt and mirrors it to the log.
func (s *EventStore) InsertEvent(_ context.Context, evt video.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	if over := len(s.events) - s.max; over > 0 {
		s.events = append([]video.Event(nil), s.events[over:]...)
	}
	s.logger.Info("event recorded",
		zap.String("type", evt.Type),
		zap.String("message", evt.Message),
		zap.Any("meta", evt.Meta),
	)
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (s *EventStore) Events() []video.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]video.Event, len(s.events))
	copy(out, s.events)
	return out
}
