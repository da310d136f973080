// Package events announces configuration changes to other services.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubjectPipelineUpdated is published after a pipeline is saved through the API.
const SubjectPipelineUpdated = "pipeline.config.updated"

// Event is the payload of every published message.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Pipeline string    `json:"pipeline"`
	Actor    string    `json:"actor,omitempty"`
	Time     time.Time `json:"time"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(typ, pipeline, actor string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Pipeline: pipeline,
		Actor:    actor,
		Time:     time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }

// MemoryPublisher keeps published events in order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

// Published pairs an event with its subject.
type Published struct {
	Subject string
	Event   Event
}

func (m *MemoryPublisher) Publish(_ context.Context, subject string, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Published{Subject: subject, Event: evt})
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.events...)
}
