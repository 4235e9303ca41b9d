package hmr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/bundler"
	"github.com/withgalaxy/devbridge/pkg/graph"
	"github.com/withgalaxy/devbridge/pkg/watcher"
)

const writeWait = 10 * time.Second

var ErrConnClosed = errors.New("connection closed")

// ChangeSource delivers file change notifications.
type ChangeSource interface {
	Subscribe(l watcher.Listener) (unsubscribe func())
}

// Server accepts HMR client connections and pushes update cycles to them.
type Server struct {
	packager  bundler.Packager
	builder   SnapshotBuilder
	changes   ChangeSource
	channel   *Channel
	tracker   *SessionTracker
	upgrader  websocket.Upgrader
	entryPath func(string) string
	logger    *zap.Logger

	addr     atomic.Value
	baseCtx  context.Context
	inFlight sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*wsConn]struct{}
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSnapshotBuilder(b SnapshotBuilder) Option {
	return func(s *Server) { s.builder = b }
}

// WithEntryPath maps the bundleEntry query parameter to a resolver path.
func WithEntryPath(fn func(string) string) Option {
	return func(s *Server) { s.entryPath = fn }
}

func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithBaseContext sets the parent context of every connection.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.baseCtx = ctx }
}

func NewServer(packager bundler.Packager, changes ChangeSource, opts ...Option) *Server {
	s := &Server{
		packager:  packager,
		changes:   changes,
		tracker:   NewSessionTracker(),
		conns:     make(map[*wsConn]struct{}),
		entryPath: func(entry string) string { return entry },
		logger:    zap.NewNop(),
		baseCtx:   context.Background(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = graph.NewBuilder(packager, graph.WithLogger(s.logger))
	}
	s.channel = NewChannel(packager, s.Addr, s.logger)
	return s
}

// SetAddr records the address the server listens on.
func (s *Server) SetAddr(addr net.Addr) {
	s.addr.Store(addrBox{addr})
}

func (s *Server) Addr() net.Addr {
	if box, ok := s.addr.Load().(addrBox); ok {
		return box.Addr
	}
	return nil
}

type addrBox struct{ net.Addr }

func (s *Server) Sessions() *SessionTracker {
	return s.tracker
}

// Wait blocks until every in-flight change cycle has finished.
func (s *Server) Wait() {
	s.inFlight.Wait()
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	platform := query.Get("platform")
	entry := s.entryPath(query.Get("bundleEntry"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newWSConn(conn)
	s.trackConn(client, true)
	defer func() {
		s.trackConn(client, false)
		client.Close()
	}()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	sess, err := NewSession(ctx, s.packager, s.builder, platform, entry, s.logger)
	if err != nil {
		s.rejectConnection(client, err)
		return
	}
	log := s.logger.With(zap.String("session", sess.ID))
	log.Info("client connected", zap.String("platform", platform), zap.String("entry", entry))

	s.tracker.Add(sess)
	unsubscribe := s.changes.Subscribe(func(ev watcher.Event) {
		s.dispatch(ctx, sess, client, ev)
	})

	defer func() {
		unsubscribe()
		s.tracker.Remove(sess.ID)
		log.Info("client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *Session, client *wsConn, ev watcher.Event) {
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		s.channel.Run(ctx, sess, client, ev)
	}()
}

func (s *Server) rejectConnection(client *wsConn, err error) {
	body, internal := ErrorBodyFor(err)
	if internal {
		s.logger.Error("initial snapshot failed", zap.Error(err))
	} else {
		s.logger.Warn("initial snapshot failed", zap.Error(err))
	}
	if msg, encErr := newMessage(MsgTypeError, body); encErr == nil {
		_ = client.Send(msg)
	}
	_ = client.CloseWith(websocket.CloseInternalServerErr, "unable to build dependency graph")
}

func (s *Server) trackConn(c *wsConn, add bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Shutdown closes every session and connection. In-flight cycles see the
// closed sessions and stop sending.
func (s *Server) Shutdown() {
	s.tracker.Clear()

	s.connsMu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		_ = c.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}
}

// wsConn serializes writes to one websocket; gorilla allows a single
// concurrent writer.
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(msg Message) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Closed() bool {
	return c.closed.Load()
}

func (c *wsConn) CloseWith(code int, reason string) error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.Close()
}

func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
