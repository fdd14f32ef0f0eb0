package memory

import (
	"context"
	"sync"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/internal/msgqueue"
)

// Bus is an in-process implementation of rpc.Bus. Subjects are matched with
// NATS wildcard rules and every subscription buffers without bound, so
// publishers never block on slow subscribers.
type Bus struct {
	mu     *sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

func New() *Bus {
	return &Bus{
		mu:   &sync.RWMutex{},
		subs: make(map[uint64]*subscription),
	}
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.PublishWithReply(ctx, subject, "", data)
}

func (b *Bus) PublishWithReply(ctx context.Context, subject string, reply string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return rpc.ErrBusClosed
	}

	for _, sub := range b.subs {
		if rpc.MatchSubject(sub.pattern, subject) {
			// every subscriber gets its own copy of the payload
			payload := append([]byte(nil), data...)
			sub.queue.Push(&rpc.Msg{Subject: subject, Reply: reply, Data: payload})
		}
	}
	return nil
}

// HasSubscribers reports whether any live subscription matches subject.
func (b *Bus) HasSubscribers(subject string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if rpc.MatchSubject(sub.pattern, subject) {
			return true
		}
	}
	return false
}

// Request publishes data with a fresh inbox as reply subject and waits for
// the first message on it. It fails fast with rpc.ErrNoResponders when no
// subscription matches subject.
func (b *Bus) Request(ctx context.Context, subject string, data []byte) (*rpc.Msg, error) {
	inbox := b.NewInbox()
	sub, err := b.Subscribe(ctx, inbox)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if !b.HasSubscribers(subject) {
		return nil, rpc.ErrNoResponders
	}

	if err := b.PublishWithReply(ctx, subject, inbox, data); err != nil {
		return nil, err
	}
	return sub.Next(ctx)
}

func (b *Bus) Subscribe(ctx context.Context, subject string) (rpc.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, rpc.ErrBusClosed
	}

	b.nextID++
	sub := &subscription{
		id:      b.nextID,
		pattern: subject,
		bus:     b,
		queue:   msgqueue.New(),
	}
	b.subs[sub.id] = sub
	return sub, nil
}

func (b *Bus) NewInbox() string {
	return rpc.NewInboxSubject()
}

// NumSubscriptions returns the number of live subscriptions.
func (b *Bus) NumSubscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Further operations return rpc.ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscription)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.queue.Close()
	}
	return nil
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

type subscription struct {
	id      uint64
	pattern string
	bus     *Bus
	queue   *msgqueue.Queue
}

func (s *subscription) Next(ctx context.Context) (*rpc.Msg, error) {
	return s.queue.Next(ctx)
}

func (s *subscription) Unsubscribe() error {
	s.bus.remove(s.id)
	s.queue.Close()
	return nil
}
