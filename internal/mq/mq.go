// Package mq publishes account lifecycle events to a message broker.
// Publishing is best-effort: the auth flows log failures but never fail
// a request because the broker is down.
package mq

import "context"

// Backend defines the broker-agnostic publish operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}
