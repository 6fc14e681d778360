// Package events publishes car lifecycle events. Publishing is best effort: callers log
// and count failures but never fail the request that produced the event.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// Type names a car lifecycle event. It doubles as the routing key.
type Type string

const (
	CarCreated Type = "car.created"
	CarUpdated Type = "car.updated"
	CarDeleted Type = "car.deleted"
)

// Event is the message body published for every car change.
type Event struct {
	ID            string      `json:"id"`
	Type          Type        `json:"type"`
	CarID         int64       `json:"carId"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Car           *models.Car `json:"car,omitempty"`
}

// New builds an event with a fresh id. car is omitted from the payload for deletions.
func New(t Type, car models.Car, correlationID string) Event {
	e := Event{
		ID:            uuid.NewString(),
		Type:          t,
		CarID:         car.ID,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
	}
	if t != CarDeleted {
		stored := car.Stored()
		e.Car = &stored
	}
	return e
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher discards events. Used when events.backend is none.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

// MemoryPublisher records events in order. Safe for concurrent use.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from Publish and the event is not recorded.
	Err error
}

func (p *MemoryPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
