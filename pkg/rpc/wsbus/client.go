package wsbus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/internal/msgqueue"
)

type Config struct {
	// URL of the broker, e.g. "ws://localhost:4280/bus". A URL without path
	// uses DefaultPath.
	URL       string
	TLSConfig *tls.Config
	Header    http.Header
	// MaxMessageSize limits incoming frames in bytes (0 for no limit).
	MaxMessageSize int64
	DialTimeout    time.Duration
}

// Bus is the client side of the websocket broker. It implements rpc.Bus.
type Bus struct {
	ws      *websocket.Conn
	writeMu *sync.Mutex
	mu      *sync.Mutex
	subs    map[uint64]*subscription
	nextSID uint64
	closed  bool
	done    chan struct{}
}

// Dial connects to the broker.
func Dial(ctx context.Context, conf Config) (*Bus, error) {
	u, err := url.Parse(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url %q: %w", conf.URL, err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: conf.DialTimeout,
	}
	if conf.TLSConfig != nil {
		dialer.TLSClientConfig = conf.TLSConfig
		if u.Scheme == "ws" {
			u.Scheme = "wss"
		}
	}

	ws, _, err := dialer.DialContext(ctx, u.String(), conf.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker at %s: %w", u.String(), err)
	}
	if conf.MaxMessageSize > 0 {
		ws.SetReadLimit(conf.MaxMessageSize)
	}

	b := &Bus{
		ws:      ws,
		writeMu: &sync.Mutex{},
		mu:      &sync.Mutex{},
		subs:    make(map[uint64]*subscription),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *Bus) readLoop() {
	defer b.shutdown()

	for {
		var f frame
		if err := b.ws.ReadJSON(&f); err != nil {
			return
		}

		b.mu.Lock()
		sub, ok := b.subs[f.SID]
		b.mu.Unlock()
		if !ok {
			continue
		}

		switch f.Op {
		case opMessage:
			sub.queue.Push(&rpc.Msg{Subject: f.Subject, Reply: f.Reply, Data: f.Data})
		case opNoResponder:
			sub.noResponders()
		}
	}
}

func (b *Bus) write(f frame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return rpc.ErrBusClosed
	}
	return b.ws.WriteJSON(f)
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.PublishWithReply(ctx, subject, "", data)
}

func (b *Bus) PublishWithReply(ctx context.Context, subject string, reply string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.write(frame{Op: opPublish, Subject: subject, Reply: reply, Data: data})
}

// Request subscribes to a fresh inbox and asks the broker to publish the
// request. The broker answers with a no-responders frame when nothing is
// subscribed to subject.
func (b *Bus) Request(ctx context.Context, subject string, data []byte) (*rpc.Msg, error) {
	inbox := b.NewInbox()
	s, err := b.Subscribe(ctx, inbox)
	if err != nil {
		return nil, err
	}
	sub := s.(*subscription)
	defer sub.Unsubscribe()

	if err := b.write(frame{Op: opRequest, SID: sub.sid, Subject: subject, Reply: inbox, Data: data}); err != nil {
		return nil, err
	}

	replies := make(chan *rpc.Msg, 1)
	errs := make(chan error, 1)
	go func() {
		msg, err := sub.Next(ctx)
		if err != nil {
			errs <- err
			return
		}
		replies <- msg
	}()

	select {
	case <-sub.noResp:
		return nil, rpc.ErrNoResponders
	case msg := <-replies:
		return msg, nil
	case err := <-errs:
		return nil, err
	}
}

func (b *Bus) Subscribe(ctx context.Context, subject string) (rpc.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, rpc.ErrBusClosed
	}
	b.nextSID++
	sub := &subscription{
		sid:    b.nextSID,
		bus:    b,
		queue:  msgqueue.New(),
		noResp: make(chan struct{}),
	}
	b.subs[sub.sid] = sub
	b.mu.Unlock()

	if err := b.write(frame{Op: opSubscribe, SID: sub.sid, Subject: subject}); err != nil {
		b.remove(sub.sid)
		return nil, err
	}
	return sub, nil
}

func (b *Bus) NewInbox() string {
	return rpc.NewInboxSubject()
}

// Done is closed once the connection to the broker is gone.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close sends a close frame and waits briefly for the broker to hang up.
func (b *Bus) Close() error {
	b.writeMu.Lock()
	_ = b.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	b.writeMu.Unlock()

	select {
	case <-b.done:
	case <-time.After(time.Second):
	}
	b.shutdown()
	return b.ws.Close()
}

func (b *Bus) shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.queue.Close()
	}
	close(b.done)
}

func (b *Bus) remove(sid uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[sid]
	delete(b.subs, sid)
	return ok
}

type subscription struct {
	sid    uint64
	bus    *Bus
	queue  *msgqueue.Queue
	noResp chan struct{}
	once   sync.Once
}

func (s *subscription) noResponders() {
	s.once.Do(func() {
		close(s.noResp)
	})
}

func (s *subscription) Next(ctx context.Context) (*rpc.Msg, error) {
	return s.queue.Next(ctx)
}

func (s *subscription) Unsubscribe() error {
	s.queue.Close()
	if !s.bus.remove(s.sid) {
		return nil
	}
	err := s.bus.write(frame{Op: opUnsubscribe, SID: s.sid})
	if errors.Is(err, rpc.ErrBusClosed) {
		return nil
	}
	return err
}
