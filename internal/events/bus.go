package events

import (
	"context"
	"time"
)

// ChangeType names the kind of mutation a change event describes.
type ChangeType string

const (
	ChangeCreate ChangeType = "CREATE"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeRemove ChangeType = "REMOVE"
)

// ChangeEvent is the payload published for every entity mutation. New and
// Old are client views; Data is the raw input that caused the change.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	New        any        `json:"new,omitempty"`
	Old        any        `json:"old,omitempty"`
	Data       any        `json:"data,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Topic returns the bus topic for a change on channel.
func Topic(channel string, change ChangeType) string {
	return channel + "." + string(change)
}

// Handler receives messages delivered to a subscription.
type Handler func(ctx context.Context, topic string, payload []byte)

// Subscription is an active pattern subscription.
type Subscription interface {
	Close() error
}

// Bus is a topic-based publish/subscribe transport.
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error)
}
