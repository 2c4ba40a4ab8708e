package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type recordedMessage struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type recordingBackend struct {
	messages []recordedMessage
	closed   bool
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.messages = append(b.messages, recordedMessage{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestEventPublisherPublish(t *testing.T) {
	t.Parallel()

	backend := &recordingBackend{}
	publisher := NewEventPublisher(backend)

	before := time.Now().UTC()
	if err := publisher.Publish(context.Background(), EventUserRegistered, "user-1", "ann@x.com"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(backend.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(backend.messages))
	}
	msg := backend.messages[0]
	if msg.channel != EventsChannel {
		t.Fatalf("channel %q", msg.channel)
	}
	if msg.attrs["kind"] != EventUserRegistered {
		t.Fatalf("kind attribute %q", msg.attrs["kind"])
	}

	var event Event
	if err := json.Unmarshal(msg.data, &event); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected a generated event id")
	}
	if event.Kind != EventUserRegistered || event.UserID != "user-1" || event.Email != "ann@x.com" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.OccurredAt.Before(before.Add(-time.Second)) {
		t.Fatalf("implausible timestamp %v", event.OccurredAt)
	}
}

func TestEventPublisherClose(t *testing.T) {
	t.Parallel()

	backend := &recordingBackend{}
	publisher := NewEventPublisher(backend)
	if err := publisher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !backend.closed {
		t.Fatal("backend not closed")
	}
}
