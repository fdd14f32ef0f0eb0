package wsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbirk/protonats/pkg/rpc"
	"github.com/kbirk/protonats/pkg/rpc/memory"
)

// DefaultPath is the HTTP path the broker accepts websocket upgrades on.
const DefaultPath = "/bus"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type ServerConfig struct {
	// Addr is the listen address used by ListenAndServe, e.g. ":4280".
	Addr string
	// Path defaults to DefaultPath.
	Path string
	// Bus is the bus shared by every connection. A fresh memory bus is
	// created when nil.
	Bus *memory.Bus
	// MaxMessageSize limits incoming frames in bytes (0 for no limit).
	MaxMessageSize int64
	CertFile       string
	KeyFile        string
	Logger         *slog.Logger
}

// Server is a development broker: every websocket connection becomes a
// client of one shared in-process bus.
type Server struct {
	conf   ServerConfig
	bus    *memory.Bus
	server *http.Server
	conns  map[*serverConn]struct{}
	mu     *sync.Mutex
	closed bool
}

func NewServer(conf ServerConfig) *Server {
	bus := conf.Bus
	if bus == nil {
		bus = memory.New()
	}
	if conf.Path == "" {
		conf.Path = DefaultPath
	}
	return &Server{
		conf:  conf,
		bus:   bus,
		conns: make(map[*serverConn]struct{}),
		mu:    &sync.Mutex{},
	}
}

// Bus returns the shared bus so in-process servers can attach directly.
func (s *Server) Bus() *memory.Bus {
	return s.bus
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Debug(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.conf.Logger != nil {
		s.conf.Logger.Warn(msg, args...)
	}
}

// Handler returns a mux serving the broker on the configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.conf.Path, s)
	return mux
}

func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return fmt.Errorf("broker is already listening")
	}
	s.server = &http.Server{
		Addr:              s.conf.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	var err error
	if s.conf.CertFile != "" && s.conf.KeyFile != "" {
		err = server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes the open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	server := s.server
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}
	for _, c := range conns {
		c.close()
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logWarn("websocket upgrade failed", "error", err)
		return
	}
	if s.conf.MaxMessageSize > 0 {
		ws.SetReadLimit(s.conf.MaxMessageSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &serverConn{
		ws:     ws,
		bus:    s.bus,
		mu:     &sync.Mutex{},
		subs:   make(map[uint64]rpc.Subscription),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.close()
		return
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.logDebug("client connected", "remote", r.RemoteAddr)
	err = c.serve()
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logWarn("client connection failed", "remote", r.RemoteAddr, "error", err)
	}
	s.logDebug("client disconnected", "remote", r.RemoteAddr)

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

type serverConn struct {
	ws      *websocket.Conn
	bus     *memory.Bus
	writeMu sync.Mutex
	mu      *sync.Mutex
	subs    map[uint64]rpc.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func (c *serverConn) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *serverConn) serve() error {
	defer c.close()

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return err
		}

		switch f.Op {
		case opPublish:
			if err := c.bus.PublishWithReply(c.ctx, f.Subject, f.Reply, f.Data); err != nil {
				return err
			}
		case opRequest:
			if !c.bus.HasSubscribers(f.Subject) {
				if err := c.write(frame{Op: opNoResponder, SID: f.SID}); err != nil {
					return err
				}
				continue
			}
			if err := c.bus.PublishWithReply(c.ctx, f.Subject, f.Reply, f.Data); err != nil {
				return err
			}
		case opSubscribe:
			if err := c.subscribe(f.SID, f.Subject); err != nil {
				return err
			}
		case opUnsubscribe:
			c.unsubscribe(f.SID)
		default:
			return fmt.Errorf("unexpected op: %q", f.Op)
		}
	}
}

func (c *serverConn) subscribe(sid uint64, subject string) error {
	sub, err := c.bus.Subscribe(c.ctx, subject)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if old, ok := c.subs[sid]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[sid] = sub
	c.mu.Unlock()

	go func() {
		for {
			msg, err := sub.Next(c.ctx)
			if err != nil {
				return
			}
			err = c.write(frame{
				Op:      opMessage,
				SID:     sid,
				Subject: msg.Subject,
				Reply:   msg.Reply,
				Data:    msg.Data,
			})
			if err != nil {
				c.close()
				return
			}
		}
	}()
	return nil
}

func (c *serverConn) unsubscribe(sid uint64) {
	c.mu.Lock()
	sub, ok := c.subs[sid]
	delete(c.subs, sid)
	c.mu.Unlock()

	if ok {
		_ = sub.Unsubscribe()
	}
}

func (c *serverConn) close() {
	c.once.Do(func() {
		c.cancel()

		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[uint64]rpc.Subscription)
		c.mu.Unlock()

		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}

		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}
