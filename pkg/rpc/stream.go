package rpc

import (
	"context"
	"errors"
	"iter"
	"sync"

	"google.golang.org/protobuf/proto"
)

// Stream is the client side of a server-streaming call. Elements are
// delivered lazily in the order the bus delivers them.
//
// The protocol carries no end-of-stream marker: a stream stays open until
// the consumer stops reading, closes it, or the context passed to Recv or
// All is done. Callers wanting a bounded read should use a context with a
// deadline.
type Stream[T proto.Message] struct {
	desc    MethodDesc
	subject string
	codec   Codec
	sub     Subscription
	newResp func() T
	once    sync.Once
}

// OpenStream starts a server-streaming call. A private inbox is subscribed
// before the request is published so no element can be missed.
func OpenStream[T proto.Message](ctx context.Context, c *Client, desc MethodDesc, req proto.Message, newResp func() T) (*Stream[T], error) {
	subject := desc.Subject(c.prefix)

	data, err := c.codec.Marshal(req)
	if err != nil {
		return nil, c.handleError(NewError(EncodeFailure, desc, subject, err))
	}

	var sub Subscription
	_, err = ApplyHandlerChain(ctx, desc, &Msg{Subject: subject, Data: data}, c.getMiddleware(),
		func(ctx context.Context, desc MethodDesc, msg *Msg) (*Msg, error) {
			inbox := c.conf.Bus.NewInbox()
			s, err := c.conf.Bus.Subscribe(ctx, inbox)
			if err != nil {
				return nil, NewError(TransportFailure, desc, msg.Subject, err)
			}
			if err := c.conf.Bus.PublishWithReply(ctx, msg.Subject, inbox, msg.Data); err != nil {
				_ = s.Unsubscribe()
				return nil, NewError(TransportFailure, desc, msg.Subject, err)
			}
			sub = s
			return nil, nil
		})
	if err != nil {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
		return nil, c.handleError(asClientError(desc, subject, err))
	}

	c.logDebug("opened stream", "subject", subject, "method", desc.FullName())

	return &Stream[T]{
		desc:    desc,
		subject: subject,
		codec:   c.codec,
		sub:     sub,
		newResp: newResp,
	}, nil
}

// Recv blocks for the next element. An element that fails to decode is
// reported as a DecodeFailure error; the stream remains usable afterwards.
// Once the stream is closed Recv returns ErrSubscriptionClosed, and when ctx
// is done it returns ctx.Err(). Any other bus error is a TransportFailure.
func (s *Stream[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	msg, err := s.sub.Next(ctx)
	if err != nil {
		if errors.Is(err, ErrSubscriptionClosed) || ctx.Err() != nil {
			return zero, err
		}
		return zero, NewError(TransportFailure, s.desc, s.subject, err)
	}
	resp := s.newResp()
	if err := s.codec.Unmarshal(msg.Data, resp); err != nil {
		return zero, NewError(DecodeFailure, s.desc, s.subject, err)
	}
	return resp, nil
}

// All iterates the stream. Decode failures are yielded as errors and the
// iteration continues. The iteration ends without error when ctx is done or
// the stream is closed; a transport failure is yielded once and ends it.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			resp, err := s.Recv(ctx)
			if err != nil && !errors.Is(err, ErrDecodeFailure) {
				if errors.Is(err, ErrTransportFailure) {
					yield(resp, err)
				}
				return
			}
			if !yield(resp, err) {
				return
			}
		}
	}
}

// Close releases the inbox subscription. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
	})
	return err
}
