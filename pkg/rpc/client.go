package rpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
)

// DefaultRequestTimeout bounds a unary call whose context carries no
// deadline.
const DefaultRequestTimeout = 5 * time.Second

type Client struct {
	conf       ClientConfig
	prefix     string
	codec      Codec
	timeout    time.Duration
	mu         *sync.RWMutex
	middleware []Middleware
}

type ClientConfig struct {
	Bus Bus
	// Prefix is prepended to every method subject. Empty means DefaultPrefix.
	Prefix string
	// Codec defaults to ProtoCodec.
	Codec      Codec
	Logger     *slog.Logger
	ErrHandler func(error)
	// Timeout applies to unary calls made with a context without deadline.
	// Zero means DefaultRequestTimeout.
	Timeout time.Duration
}

func NewClient(conf ClientConfig) *Client {
	if conf.Bus == nil {
		panic("rpc: client requires a bus")
	}
	codec := conf.Codec
	if codec == nil {
		codec = ProtoCodec{}
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		conf:    conf,
		prefix:  NormalizePrefix(conf.Prefix),
		codec:   codec,
		timeout: timeout,
		mu:      &sync.RWMutex{},
	}
}

// Prefix returns the normalized subject prefix.
func (c *Client) Prefix() string {
	return c.prefix
}

func (c *Client) Codec() Codec {
	return c.codec
}

func (c *Client) Middleware(middleware Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

func (c *Client) getMiddleware() []Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Middleware(nil), c.middleware...)
}

func (c *Client) handleError(err error) error {
	c.logError("client call failed", "error", err)
	if c.conf.ErrHandler != nil {
		c.conf.ErrHandler(err)
	}
	return err
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.conf.Logger != nil {
		c.conf.Logger.Debug(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if c.conf.Logger != nil {
		c.conf.Logger.Error(msg, args...)
	}
}

// Call performs a unary request: req is encoded, sent to the method subject
// and the first reply is decoded into resp. Calls are never retried.
func (c *Client) Call(ctx context.Context, desc MethodDesc, req proto.Message, resp proto.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	subject := desc.Subject(c.prefix)

	data, err := c.codec.Marshal(req)
	if err != nil {
		return c.handleError(NewError(EncodeFailure, desc, subject, err))
	}

	c.logDebug("sending request", "subject", subject, "method", desc.FullName())

	reply, err := ApplyHandlerChain(ctx, desc, &Msg{Subject: subject, Data: data}, c.getMiddleware(),
		func(ctx context.Context, desc MethodDesc, msg *Msg) (*Msg, error) {
			reply, err := c.conf.Bus.Request(ctx, msg.Subject, msg.Data)
			if err != nil {
				return nil, NewError(TransportFailure, desc, msg.Subject, err)
			}
			return reply, nil
		})
	if err != nil {
		return c.handleError(asClientError(desc, subject, err))
	}
	if reply == nil {
		return c.handleError(NewError(TransportFailure, desc, subject, errNoReply))
	}

	if err := c.codec.Unmarshal(reply.Data, resp); err != nil {
		return c.handleError(NewError(DecodeFailure, desc, subject, err))
	}
	return nil
}

// Notify encodes req and publishes it to the method subject without a reply
// subject.
func (c *Client) Notify(ctx context.Context, desc MethodDesc, req proto.Message) error {
	subject := desc.Subject(c.prefix)

	data, err := c.codec.Marshal(req)
	if err != nil {
		return c.handleError(NewError(EncodeFailure, desc, subject, err))
	}

	_, err = ApplyHandlerChain(ctx, desc, &Msg{Subject: subject, Data: data}, c.getMiddleware(),
		func(ctx context.Context, desc MethodDesc, msg *Msg) (*Msg, error) {
			if err := c.conf.Bus.Publish(ctx, msg.Subject, msg.Data); err != nil {
				return nil, NewError(TransportFailure, desc, msg.Subject, err)
			}
			return nil, nil
		})
	if err != nil {
		return c.handleError(asClientError(desc, subject, err))
	}
	return nil
}

// asClientError tags errors raised by middleware that are not already
// protocol errors as transport failures.
func asClientError(desc MethodDesc, subject string, err error) error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return err
	}
	return NewError(TransportFailure, desc, subject, err)
}
