package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kbirk/protonats/pkg/rpc"
)

// Config describes how to reach a NATS server.
type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
}

// Bus implements rpc.Bus on a NATS connection. Subjects, wildcards, reply
// subjects and inboxes map one to one onto NATS primitives.
type Bus struct {
	nc    *nats.Conn
	owned bool
}

// New wraps an existing connection. Close does not close it.
func New(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

// Connect dials the server described by conf. The returned bus owns the
// connection and closes it on Close.
func Connect(conf Config) (*Bus, error) {
	url := conf.URL
	if url == "" {
		url = nats.DefaultURL
	}

	opts := []nats.Option{}
	if conf.Name != "" {
		opts = append(opts, nats.Name(conf.Name))
	}
	if conf.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(conf.ConnTimeout))
	}
	if conf.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(conf.MaxReconnects))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return &Bus{nc: nc, owned: true}, nil
}

// Conn returns the underlying connection.
func (b *Bus) Conn() *nats.Conn {
	return b.nc
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(b.nc.Publish(subject, data))
}

func (b *Bus) PublishWithReply(ctx context.Context, subject string, reply string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(b.nc.PublishRequest(subject, reply, data))
}

func (b *Bus) Request(ctx context.Context, subject string, data []byte) (*rpc.Msg, error) {
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, mapError(err)
	}
	return convert(msg), nil
}

func (b *Bus) Subscribe(ctx context.Context, subject string) (rpc.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := b.nc.SubscribeSync(subject)
	if err != nil {
		return nil, mapError(err)
	}
	return &subscription{sub: sub}, nil
}

func (b *Bus) NewInbox() string {
	return b.nc.NewInbox()
}

// Close drains and closes the connection when the bus owns it.
func (b *Bus) Close() error {
	if !b.owned || b.nc.IsClosed() {
		return nil
	}
	err := b.nc.Drain()
	b.nc.Close()
	return err
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Next(ctx context.Context) (*rpc.Msg, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil, fmt.Errorf("%w: %w", rpc.ErrSubscriptionClosed, err)
		}
		return nil, mapError(err)
	}
	return convert(msg), nil
}

func (s *subscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

func convert(msg *nats.Msg) *rpc.Msg {
	return &rpc.Msg{
		Subject: msg.Subject,
		Reply:   msg.Reply,
		Data:    msg.Data,
	}
}

// mapError translates NATS errors into the rpc bus sentinels, keeping the
// NATS error in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrNoResponders):
		return fmt.Errorf("%w: %w", rpc.ErrNoResponders, err)
	case errors.Is(err, nats.ErrBadSubscription):
		return fmt.Errorf("%w: %w", rpc.ErrSubscriptionClosed, err)
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining):
		return fmt.Errorf("%w: %w", rpc.ErrBusClosed, err)
	default:
		return err
	}
}
