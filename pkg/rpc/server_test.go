package rpc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/memory"
)

func TestUnaryCall(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	resp, err := h.client.Echo(context.Background(), wrapperspb.String("hello"))
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.GetValue())
}

func TestUnaryCallWithCustomPrefix(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{Prefix: "acme.people..."}, &echoImpl{})

	sub, err := h.bus.Subscribe(context.Background(), "acme.people.echo")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	resp, err := h.client.Echo(context.Background(), wrapperspb.String("prefixed"))
	require.NoError(t, err)
	assert.Equal(t, "echo: prefixed", resp.GetValue())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme.people.echo", msg.Subject)
}

func TestUnaryCallRepliesExactlyOnce(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	inbox := h.bus.NewInbox()
	sub, err := h.bus.Subscribe(context.Background(), inbox)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	data, err := rpc.ProtoCodec{}.Marshal(wrapperspb.String("once"))
	require.NoError(t, err)
	require.NoError(t, h.bus.PublishWithReply(context.Background(), "nats.proto.echo", inbox, data))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sub.Next(ctx)
	require.NoError(t, err)

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnaryCallWithoutReplySubject(t *testing.T) {
	impl := &echoImpl{}
	h := startHarness(t, rpc.ServerConfig{}, impl)

	data, err := rpc.ProtoCodec{}.Marshal(wrapperspb.String("nobody listening"))
	require.NoError(t, err)
	require.NoError(t, h.bus.Publish(context.Background(), "nats.proto.echo", data))

	err = h.nextError(t)
	assert.ErrorIs(t, err, rpc.ErrUnaddressableReply)
	assert.Equal(t, rpc.UnaddressableReply, rpc.KindOf(err))

	// handler still ran
	_, calls := impl.snapshot()
	assert.Equal(t, 1, calls)

	// loop keeps serving
	resp, err := h.client.Echo(context.Background(), wrapperspb.String("after"))
	require.NoError(t, err)
	assert.Equal(t, "echo: after", resp.GetValue())
}

func TestUnroutableSubjectKeepsServing(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	require.NoError(t, h.bus.Publish(context.Background(), "nats.proto.unknown.method", []byte("x")))

	err := h.nextError(t)
	require.ErrorIs(t, err, rpc.ErrUnroutableSubject)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "nats.proto.unknown.method", rpcErr.Subject)
	assert.Contains(t, err.Error(), "nats.proto.unknown.method")

	resp, err := h.client.Echo(context.Background(), wrapperspb.String("still here"))
	require.NoError(t, err)
	assert.Equal(t, "echo: still here", resp.GetValue())
}

func TestDecodeFailureIsIsolatedByDefault(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	require.NoError(t, h.bus.PublishWithReply(context.Background(), "nats.proto.echo", h.bus.NewInbox(), []byte{0xff, 0xff, 0xff}))

	err := h.nextError(t)
	assert.ErrorIs(t, err, rpc.ErrDecodeFailure)

	resp, err := h.client.Echo(context.Background(), wrapperspb.String("recovered"))
	require.NoError(t, err)
	assert.Equal(t, "echo: recovered", resp.GetValue())
}

func TestDecodeFailureStopsServerWhenFailFast(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{FailFast: true}, &echoImpl{})

	require.NoError(t, h.bus.PublishWithReply(context.Background(), "nats.proto.echo", h.bus.NewInbox(), []byte{0xff, 0xff, 0xff}))

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, rpc.ErrDecodeFailure)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHandlerFailureSendsNoReply(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{fail: true})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := h.client.Echo(ctx, wrapperspb.String("fail"))
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrTransportFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = h.nextError(t)
	assert.ErrorIs(t, err, rpc.ErrHandlerFailure)
	assert.Contains(t, err.Error(), "unable to echo")
}

func TestHandlerFailureStopsServerWhenFailFast(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{FailFast: true}, &echoImpl{fail: true})

	require.NoError(t, h.bus.PublishWithReply(context.Background(), "nats.proto.echo", h.bus.NewInbox(), mustMarshal(t, wrapperspb.String("fail"))))

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, rpc.ErrHandlerFailure)
		assert.Contains(t, err.Error(), "Echo.Echo")
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStreamingWithoutReplySubject(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	all, err := h.bus.Subscribe(context.Background(), ">")
	require.NoError(t, err)
	defer all.Unsubscribe()

	require.NoError(t, h.bus.Publish(context.Background(), "nats.proto.count", mustMarshal(t, wrapperspb.Int32(3))))

	err = h.nextError(t)
	assert.ErrorIs(t, err, rpc.ErrUnaddressableReply)
	assert.Contains(t, err.Error(), "Echo.Count")

	// only the request itself crossed the bus
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := all.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nats.proto.count", msg.Subject)

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = all.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// loop keeps serving
	resp, err := h.client.Echo(context.Background(), wrapperspb.String("after"))
	require.NoError(t, err)
	assert.Equal(t, "echo: after", resp.GetValue())
}

func TestServerStreaming(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	stream, err := h.client.Count(context.Background(), wrapperspb.Int32(5))
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var got []int32
	for v, err := range stream.All(ctx) {
		require.NoError(t, err)
		got = append(got, v.GetValue())
	}
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, got)

	// nothing follows the last element
	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = stream.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServerStreamingYieldedErrorStopsStream(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{fail: true})

	stream, err := h.client.Count(context.Background(), wrapperspb.Int32(2))
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var got []int32
	for v, err := range stream.All(ctx) {
		require.NoError(t, err)
		got = append(got, v.GetValue())
	}
	assert.Equal(t, []int32{0, 1}, got)

	err = h.nextError(t)
	assert.ErrorIs(t, err, rpc.ErrHandlerFailure)
}

func TestStreamSurfacesDecodeFailures(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), "nats.proto.count")
	require.NoError(t, err)

	client := rpc.NewClient(rpc.ClientConfig{Bus: bus})
	stream, err := rpc.OpenStream(context.Background(), client, countMethod, wrapperspb.Int32(1),
		func() *wrapperspb.Int32Value { return new(wrapperspb.Int32Value) })
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := sub.Next(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, req.Reply)

	good, err := rpc.ProtoCodec{}.Marshal(wrapperspb.Int32(7))
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, req.Reply, []byte{0xff, 0xff}))
	require.NoError(t, bus.Publish(ctx, req.Reply, good))

	_, err = stream.Recv(ctx)
	assert.ErrorIs(t, err, rpc.ErrDecodeFailure)

	v, err := stream.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.GetValue())

	require.NoError(t, stream.Close())
	_, err = stream.Recv(ctx)
	assert.ErrorIs(t, err, rpc.ErrSubscriptionClosed)
}

func TestNotification(t *testing.T) {
	impl := &echoImpl{}
	h := startHarness(t, rpc.ServerConfig{}, impl)

	require.NoError(t, h.client.SubscribeEvents(context.Background(), wrapperspb.String("started")))
	require.NoError(t, h.client.SubscribeEvents(context.Background(), wrapperspb.String("stopped")))

	assert.Eventually(t, func() bool {
		events, _ := impl.snapshot()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	events, _ := impl.snapshot()
	assert.Equal(t, []string{"started", "stopped"}, events)
}

func TestCallWithoutServerFailsFast(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	client := &echoClient{client: rpc.NewClient(rpc.ClientConfig{Bus: bus})}
	_, err := client.Echo(context.Background(), wrapperspb.String("anyone?"))
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrTransportFailure)
	assert.ErrorIs(t, err, rpc.ErrNoResponders)
}

func TestShutdownStopsServe(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})

	require.NoError(t, h.server.Shutdown(context.Background()))

	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeReturnsContextError(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	server := rpc.NewServer(rpc.ServerConfig{Bus: bus})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, server.Listen(ctx))

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeReturnsNilWhenBusCloses(t *testing.T) {
	bus := memory.New()

	server := rpc.NewServer(rpc.ServerConfig{Bus: bus})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})
	require.NoError(t, server.Listen(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(context.Background())
	}()
	bus.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeRequiresListen(t *testing.T) {
	server := rpc.NewServer(rpc.ServerConfig{Bus: memory.New()})
	err := server.Serve(context.Background())
	assert.Error(t, err)
}

func TestRegisterDuplicateServicePanics(t *testing.T) {
	server := rpc.NewServer(rpc.ServerConfig{Bus: memory.New()})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})

	assert.Panics(t, func() {
		server.RegisterServer(&echoStub{impl: &echoImpl{}})
	})
}

type otherStub struct {
	echoStub
}

func (s *otherStub) ServiceName() string {
	return "Other"
}

func TestRegisterDuplicateSuffixPanics(t *testing.T) {
	server := rpc.NewServer(rpc.ServerConfig{Bus: memory.New()})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})

	assert.Panics(t, func() {
		server.RegisterServer(&otherStub{})
	})
}

func TestServerMiddlewareOrder(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	var order []string
	server := rpc.NewServer(rpc.ServerConfig{Bus: bus})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})
	server.Middleware(func(ctx context.Context, desc rpc.MethodDesc, msg *rpc.Msg, next rpc.Handler) (*rpc.Msg, error) {
		order = append(order, "first:"+desc.Method)
		return next(ctx, desc, msg)
	})
	server.Middleware(func(ctx context.Context, desc rpc.MethodDesc, msg *rpc.Msg, next rpc.Handler) (*rpc.Msg, error) {
		order = append(order, "second:"+desc.Method)
		return next(ctx, desc, msg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, server.Listen(ctx))
	go server.Serve(ctx)

	client := &echoClient{client: rpc.NewClient(rpc.ClientConfig{Bus: bus})}
	_, err := client.Echo(context.Background(), wrapperspb.String("mw"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first:Echo", "second:Echo"}, order)
}

func TestRejectingMiddlewareIsHandlerFailure(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	errs := make(chan error, 1)
	server := rpc.NewServer(rpc.ServerConfig{
		Bus:        bus,
		ErrHandler: func(err error) { errs <- err },
	})
	server.RegisterServer(&echoStub{impl: &echoImpl{}})
	server.Middleware(func(ctx context.Context, desc rpc.MethodDesc, msg *rpc.Msg, next rpc.Handler) (*rpc.Msg, error) {
		return nil, errors.New("rejected")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, server.Listen(ctx))
	go server.Serve(ctx)

	require.NoError(t, bus.PublishWithReply(ctx, "nats.proto.echo", bus.NewInbox(), nil))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, rpc.ErrHandlerFailure)
		assert.Contains(t, err.Error(), "rejected")
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
}

func TestShortCircuitingClientMiddlewareIsTransportFailure(t *testing.T) {
	h := startHarness(t, rpc.ServerConfig{}, &echoImpl{})
	h.client.client.Middleware(func(ctx context.Context, desc rpc.MethodDesc, msg *rpc.Msg, next rpc.Handler) (*rpc.Msg, error) {
		return nil, nil
	})

	resp, err := h.client.Echo(context.Background(), wrapperspb.String("dropped"))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, rpc.ErrTransportFailure)
	assert.Contains(t, err.Error(), "no reply received")
}

var errSlowConsumer = errors.New("slow consumer, messages dropped")

type failingSubscription struct{}

func (failingSubscription) Next(ctx context.Context) (*rpc.Msg, error) {
	return nil, errSlowConsumer
}

func (failingSubscription) Unsubscribe() error {
	return nil
}

// failingBus delivers requests normally but every subscription fails.
type failingBus struct {
	*memory.Bus
}

func (b failingBus) Subscribe(ctx context.Context, subject string) (rpc.Subscription, error) {
	return failingSubscription{}, nil
}

func TestStreamYieldsTransportFailureOnce(t *testing.T) {
	bus := memory.New()
	defer bus.Close()

	client := rpc.NewClient(rpc.ClientConfig{Bus: failingBus{Bus: bus}})
	stream, err := rpc.OpenStream(context.Background(), client, countMethod, wrapperspb.Int32(1),
		func() *wrapperspb.Int32Value { return new(wrapperspb.Int32Value) })
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var errs []error
	for _, err := range stream.All(ctx) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], rpc.ErrTransportFailure)
	assert.ErrorIs(t, errs[0], errSlowConsumer)
}
