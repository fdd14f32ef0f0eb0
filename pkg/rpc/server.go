package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/protobuf/proto"
)

type serverState uint8

const (
	stateNotSubscribed serverState = iota
	stateSubscribed
	stateServing
	stateStopped
)

type Server struct {
	conf       ServerConfig
	prefix     string
	codec      Codec
	services   map[string]ServiceStub
	routes     map[string]route
	middleware []Middleware
	sub        Subscription
	state      serverState
	mu         *sync.Mutex
}

type route struct {
	desc MethodDesc
	stub ServiceStub
}

type ServerConfig struct {
	Bus Bus
	// Prefix scopes every subject the server listens on. Empty means
	// DefaultPrefix.
	Prefix string
	// Codec defaults to ProtoCodec.
	Codec      Codec
	Logger     *slog.Logger
	ErrHandler func(error)
	// FailFast stops Serve on the first decode, handler or encode failure.
	// By default those failures are reported and the loop moves on to the
	// next message.
	FailFast bool
}

func NewServer(conf ServerConfig) *Server {
	if conf.Bus == nil {
		panic("rpc: server requires a bus")
	}
	codec := conf.Codec
	if codec == nil {
		codec = ProtoCodec{}
	}
	return &Server{
		conf:     conf,
		prefix:   NormalizePrefix(conf.Prefix),
		codec:    codec,
		services: make(map[string]ServiceStub),
		routes:   make(map[string]route),
		mu:       &sync.Mutex{},
	}
}

// Prefix returns the normalized subject prefix.
func (s *Server) Prefix() string {
	return s.prefix
}

func (s *Server) Codec() Codec {
	return s.codec
}

func (s *Server) handleError(err error) {
	s.logError("encountered error", "error", err)
	s.report(err)
}

func (s *Server) report(err error) {
	if s.conf.ErrHandler != nil {
		s.conf.ErrHandler(err)
	}
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Debug(msg, args...)
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Info(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Warn(msg, args...)
	}
}

func (s *Server) logError(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Error(msg, args...)
	}
}

// RegisterServer adds the methods of a generated service stub to the routing
// table. It panics when the service is already registered or when one of its
// subject suffixes is already routed, and when called after Serve started.
func (s *Server) RegisterServer(stub ServiceStub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state >= stateServing {
		panic(fmt.Sprintf("service %s registered after the server started serving", stub.ServiceName()))
	}

	name := stub.ServiceName()
	if _, ok := s.services[name]; ok {
		panic(fmt.Sprintf("service %s already registered", name))
	}

	methods := stub.Methods()
	for _, desc := range methods {
		if existing, ok := s.routes[desc.Suffix]; ok {
			panic(fmt.Sprintf("subject suffix %q of %s already routed to %s",
				desc.Suffix, desc.FullName(), existing.desc.FullName()))
		}
	}
	for _, desc := range methods {
		s.routes[desc.Suffix] = route{desc: desc, stub: stub}
	}
	s.services[name] = stub
}

func (s *Server) Middleware(m Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, m)
}

// Listen subscribes to every subject under the prefix. Messages published
// after Listen returns are delivered to Serve.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateNotSubscribed {
		return fmt.Errorf("server is already listening")
	}

	wildcard := WildcardSubject(s.prefix)
	sub, err := s.conf.Bus.Subscribe(ctx, wildcard)
	if err != nil {
		return &Error{Kind: TransportFailure, Subject: wildcard, Err: err}
	}
	s.sub = sub
	s.state = stateSubscribed

	s.logInfo("listening", "subject", wildcard)
	return nil
}

// Serve consumes messages one at a time until the subscription ends, the
// server is shut down, ctx is done or a fatal error occurs. A closed
// subscription or a shutdown returns nil; a done context returns ctx.Err().
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateNotSubscribed:
		s.mu.Unlock()
		return fmt.Errorf("server is not listening")
	case stateServing:
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	case stateStopped:
		s.mu.Unlock()
		return nil
	}
	s.state = stateServing
	sub := s.sub
	s.mu.Unlock()

	defer s.stop()

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSubscriptionClosed) {
				s.logInfo("subscription closed, stopping")
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &Error{Kind: TransportFailure, Subject: WildcardSubject(s.prefix), Err: err}
		}

		if err := s.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown unsubscribes; a running Serve returns nil.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.state = stateStopped
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	s.logInfo("shutting down")
	return sub.Unsubscribe()
}

func (s *Server) stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.state = stateStopped
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
}

func (s *Server) lookup(suffix string) (route, []Middleware, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[suffix]
	return r, s.middleware, ok
}

// dispatch handles a single message. It returns an error only when the
// error must stop the loop.
func (s *Server) dispatch(ctx context.Context, msg *Msg) error {
	suffix, ok := TrimSubjectPrefix(msg.Subject, s.prefix)
	var r route
	var middleware []Middleware
	if ok {
		r, middleware, ok = s.lookup(suffix)
	}
	if !ok {
		err := &Error{
			Kind:    UnroutableSubject,
			Subject: msg.Subject,
			Err:     fmt.Errorf("received message on unknown subject: %s", msg.Subject),
		}
		s.logWarn("received message on unknown subject", "subject", msg.Subject)
		s.report(err)
		return nil
	}

	s.logDebug("dispatching message", "subject", msg.Subject, "method", r.desc.FullName())

	_, err := ApplyHandlerChain(ctx, r.desc, msg, middleware,
		func(ctx context.Context, desc MethodDesc, msg *Msg) (*Msg, error) {
			return nil, r.stub.HandleMessage(ctx, s, desc, msg)
		})
	if err == nil {
		return nil
	}

	switch KindOf(err) {
	case UnaddressableReply:
		s.logWarn("no reply subject found in message", "subject", msg.Subject, "method", r.desc.FullName())
		s.report(err)
		return nil
	case TransportFailure:
		s.handleError(err)
		return err
	case 0:
		err = NewError(HandlerFailure, r.desc, msg.Subject, err)
	}

	s.handleError(err)
	if s.conf.FailFast {
		return err
	}
	return nil
}

// reply encodes resp and publishes it to the reply subject.
func (s *Server) reply(ctx context.Context, desc MethodDesc, msg *Msg, resp proto.Message) error {
	data, err := s.codec.Marshal(resp)
	if err != nil {
		return NewError(EncodeFailure, desc, msg.Subject, err)
	}
	if err := s.conf.Bus.Publish(ctx, msg.Reply, data); err != nil {
		return NewError(TransportFailure, desc, msg.Reply, err)
	}
	return nil
}
