package rpc

import (
	"context"
)

// Handler processes a message for the method described by desc. On the
// client side it returns the reply of a unary call; on the server side and
// for notifications and streams the returned message is nil.
type Handler func(context.Context, MethodDesc, *Msg) (*Msg, error)

// Middleware wraps a Handler.
type Middleware func(context.Context, MethodDesc, *Msg, Handler) (*Msg, error)

func buildHandlerFunction(middleware []Middleware, final Handler) Handler {

	// start with the final handler
	chain := final

	// wrap from the innermost middleware outwards so the first registered
	// middleware runs first
	for i := len(middleware) - 1; i >= 0; i-- {
		m := middleware[i]
		next := chain
		chain = func(ctx context.Context, desc MethodDesc, msg *Msg) (*Msg, error) {
			return m(ctx, desc, msg, next)
		}
	}

	return chain
}

func ApplyHandlerChain(ctx context.Context, desc MethodDesc, msg *Msg, middleware []Middleware, final Handler) (*Msg, error) {
	fn := buildHandlerFunction(middleware, final)
	return fn(ctx, desc, msg)
}
