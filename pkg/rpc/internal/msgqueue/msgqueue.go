// Package msgqueue provides the unbounded per-subscription queue shared by
// the in-process and websocket buses.
package msgqueue

import (
	"context"
	"sync"

	"github.com/kbirk/protonats/pkg/rpc"
)

// Queue is an unbounded FIFO of messages. Push never blocks; Next blocks
// until a message is available, the queue is closed, or ctx is done.
type Queue struct {
	mu     *sync.Mutex
	msgs   []*rpc.Msg
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func New() *Queue {
	return &Queue{
		mu:     &sync.Mutex{},
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends msg. It reports false when the queue is closed.
func (q *Queue) Push(msg *rpc.Msg) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next pops the oldest message. A closed queue returns
// rpc.ErrSubscriptionClosed.
func (q *Queue) Next(ctx context.Context) (*rpc.Msg, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, rpc.ErrSubscriptionClosed
		}
		if len(q.msgs) > 0 {
			msg := q.msgs[0]
			q.msgs[0] = nil
			q.msgs = q.msgs[1:]
			more := len(q.msgs) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close drops pending messages and wakes every waiter. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.msgs = nil
	close(q.done)
}
