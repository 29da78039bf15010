// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// NoticeEvent carries a user-facing notification from the controller.
	NoticeEvent EventType = "notice"
	// StartedEvent signals that the daemon accepted start_session.
	StartedEvent EventType = "started"
	// RefreshEvent signals that session entries on disk changed.
	RefreshEvent EventType = "refresh"
	// LogEntryEvent carries a formatted log line.
	LogEntryEvent EventType = "log"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
