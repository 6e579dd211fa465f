// Package memory keeps the most recent published notifications in process.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultLimit is how many messages New retains.
const DefaultLimit = 200

// Publisher stores published payloads for inspection, keeping at most its limit.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	max      int
	seq      int
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// New returns a memory Publisher retaining DefaultLimit messages.
func New() *Publisher {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit keeps at most max messages; older entries are discarded.
func NewWithLimit(max int) *Publisher {
	if max <= 0 {
		max = DefaultLimit
	}
	return &Publisher{max: max}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msgID := fmt.Sprintf("memory-%d", p.seq)
	p.messages = append(p.messages, PublishedMessage{ID: msgID, Topic: topic, Payload: payload})
	if over := len(p.messages) - p.max; over > 0 {
		p.messages = append([]PublishedMessage(nil), p.messages[over:]...)
	}
	return msgID, nil
}

// Messages returns the retained publishes, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Topic returns the retained payloads for one topic, in publish order.
func (p *Publisher) Topic(topic string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []any
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}
