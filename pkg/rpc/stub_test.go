package rpc_test

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/memory"
)

// Hand-written equivalent of generated bindings for:
//
//	service Echo {
//	  rpc Echo(StringValue) returns (StringValue);
//	  rpc Count(Int32Value) returns (stream Int32Value);
//	  rpc subscribeEvents(StringValue) returns (StringValue);
//	}

var (
	echoMethod = rpc.MethodDesc{
		Service: "Echo",
		Method:  "Echo",
		Suffix:  rpc.SubjectSuffix("Echo"),
		Kind:    rpc.KindCall,
	}
	countMethod = rpc.MethodDesc{
		Service:         "Echo",
		Method:          "Count",
		Suffix:          rpc.SubjectSuffix("Count"),
		Kind:            rpc.KindCall,
		ServerStreaming: true,
	}
	eventsMethod = rpc.MethodDesc{
		Service: "Echo",
		Method:  "subscribeEvents",
		Suffix:  rpc.SubjectSuffix("subscribeEvents"),
		Kind:    rpc.KindNotification,
	}
)

type echoServer interface {
	Echo(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Count(context.Context, *wrapperspb.Int32Value) iter.Seq2[*wrapperspb.Int32Value, error]
	SubscribeEvents(context.Context, *wrapperspb.StringValue) error
}

type echoStub struct {
	impl echoServer
}

func (s *echoStub) ServiceName() string {
	return "Echo"
}

func (s *echoStub) Methods() []rpc.MethodDesc {
	return []rpc.MethodDesc{echoMethod, countMethod, eventsMethod}
}

func (s *echoStub) HandleMessage(ctx context.Context, server *rpc.Server, desc rpc.MethodDesc, msg *rpc.Msg) error {
	switch desc.Suffix {
	case echoMethod.Suffix:
		return rpc.HandleCall(ctx, server, desc, msg, new(wrapperspb.StringValue), s.impl.Echo)
	case countMethod.Suffix:
		return rpc.HandleServerStream(ctx, server, desc, msg, new(wrapperspb.Int32Value), s.impl.Count)
	case eventsMethod.Suffix:
		return rpc.HandleNotification(ctx, server, desc, msg, new(wrapperspb.StringValue), s.impl.SubscribeEvents)
	}
	return fmt.Errorf("unknown method %s", desc.Method)
}

type echoClient struct {
	client *rpc.Client
}

func (c *echoClient) Echo(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	resp := new(wrapperspb.StringValue)
	if err := c.client.Call(ctx, echoMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *echoClient) Count(ctx context.Context, req *wrapperspb.Int32Value) (*rpc.Stream[*wrapperspb.Int32Value], error) {
	return rpc.OpenStream(ctx, c.client, countMethod, req, func() *wrapperspb.Int32Value {
		return new(wrapperspb.Int32Value)
	})
}

func (c *echoClient) SubscribeEvents(ctx context.Context, req *wrapperspb.StringValue) error {
	return c.client.Notify(ctx, eventsMethod, req)
}

type echoImpl struct {
	mu     sync.Mutex
	events []string
	calls  int
	fail   bool
}

func (s *echoImpl) Echo(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("unable to echo")
	}
	return wrapperspb.String("echo: " + req.GetValue()), nil
}

func (s *echoImpl) Count(ctx context.Context, req *wrapperspb.Int32Value) iter.Seq2[*wrapperspb.Int32Value, error] {
	return func(yield func(*wrapperspb.Int32Value, error) bool) {
		for i := int32(0); i < req.GetValue(); i++ {
			if !yield(wrapperspb.Int32(i), nil) {
				return
			}
		}
		if s.fail {
			yield(nil, fmt.Errorf("count exhausted"))
		}
	}
}

func (s *echoImpl) SubscribeEvents(ctx context.Context, req *wrapperspb.StringValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, req.GetValue())
	return nil
}

func (s *echoImpl) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...), s.calls
}

type harness struct {
	bus    *memory.Bus
	server *rpc.Server
	client *echoClient
	impl   *echoImpl
	errs   chan error
	done   chan error
}

func startHarness(t *testing.T, conf rpc.ServerConfig, impl *echoImpl) *harness {
	t.Helper()

	bus := memory.New()
	errs := make(chan error, 64)

	conf.Bus = bus
	conf.ErrHandler = func(err error) {
		errs <- err
	}
	server := rpc.NewServer(conf)
	server.RegisterServer(&echoStub{impl: impl})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, server.Listen(ctx))

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		bus.Close()
	})

	client := rpc.NewClient(rpc.ClientConfig{
		Bus:     bus,
		Prefix:  conf.Prefix,
		Timeout: time.Second,
	})

	return &harness{
		bus:    bus,
		server: server,
		client: &echoClient{client: client},
		impl:   impl,
		errs:   errs,
		done:   done,
	}
}

func (h *harness) nextError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errs:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reported error")
		return nil
	}
}

func mustMarshal(t *testing.T, m proto.Message) []byte {
	t.Helper()
	data, err := rpc.ProtoCodec{}.Marshal(m)
	require.NoError(t, err)
	return data
}
