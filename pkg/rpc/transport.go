package rpc

import (
	"context"
	"errors"
)

var (
	// ErrSubscriptionClosed is returned by Subscription.Next once the
	// subscription has been unsubscribed or closed by the bus.
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrNoResponders is returned by Bus.Request when the bus knows that no
	// subscriber is interested in the subject.
	ErrNoResponders = errors.New("no responders available for request")
	// ErrBusClosed is returned by operations on a closed bus.
	ErrBusClosed = errors.New("bus closed")
)

// Msg is a single message delivered by the bus.
type Msg struct {
	Subject string
	// Reply is the reply-to subject, empty when the sender expects no reply.
	Reply string
	Data  []byte
}

// Subscription is a stream of messages matching a subject pattern.
type Subscription interface {
	// Next blocks until the next message arrives, the context is done, or the
	// subscription ends. An ended subscription returns ErrSubscriptionClosed.
	Next(ctx context.Context) (*Msg, error)

	// Unsubscribe stops delivery. Pending calls to Next return
	// ErrSubscriptionClosed.
	Unsubscribe() error
}

// Bus is the publish/subscribe primitive the generated bindings run on.
// Implementations must be safe for concurrent use.
type Bus interface {
	// Publish sends data to subject without a reply subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishWithReply sends data to subject with reply as the reply-to
	// address.
	PublishWithReply(ctx context.Context, subject string, reply string, data []byte) error

	// Request publishes data to subject and waits for the first reply.
	Request(ctx context.Context, subject string, data []byte) (*Msg, error)

	// Subscribe starts delivery of every message matching the subject
	// pattern. Patterns follow NATS token rules (see MatchSubject).
	Subscribe(ctx context.Context, subject string) (Subscription, error)

	// NewInbox returns a fresh, private reply subject.
	NewInbox() string
}
