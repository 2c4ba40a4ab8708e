package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventsChannel is the broker channel carrying account lifecycle events.
const EventsChannel = "auth-events"

// Event kinds emitted by the auth flows.
const (
	EventUserRegistered    = "user.registered"
	EventUserVerified      = "user.verified"
	EventUserLogin         = "user.login"
	EventUserPasswordReset = "user.password_reset"
)

// Event is an account lifecycle event.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher serializes lifecycle events onto the events channel.
type EventPublisher struct {
	backend Backend
}

// NewEventPublisher constructs an EventPublisher for the provided backend.
func NewEventPublisher(backend Backend) *EventPublisher {
	return &EventPublisher{backend: backend}
}

// Publish sends a lifecycle event for the given user.
func (p *EventPublisher) Publish(ctx context.Context, kind, userID, email string) error {
	event := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, EventsChannel, data, map[string]string{"kind": kind})
	return err
}

// Close closes the underlying backend.
func (p *EventPublisher) Close() error {
	return p.backend.Close()
}
