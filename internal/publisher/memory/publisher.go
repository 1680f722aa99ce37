// Package memory records crawl notifications in-memory for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCapacity bounds the messages retained by New(0).
const DefaultCapacity = 256

// Publisher keeps the most recent published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	seq      int
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Event   string
	Payload any
}

// New returns a memory Publisher retaining at most capacity messages.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish records the message and returns a pseudo ID. The oldest message is
// dropped once capacity is reached.
func (p *Publisher) Publish(_ context.Context, event string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	if len(p.messages) == p.capacity {
		p.messages = append(p.messages[:0], p.messages[1:]...)
	}
	p.messages = append(p.messages, PublishedMessage{ID: id, Event: event, Payload: payload})
	return id, nil
}

// Messages returns the retained publishes, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
