// Package broker relays messages between one debugger and one running
// application instance over WebSocket.
//
// Peers connect with ?role=debugger or ?role=client. A second debugger is
// turned away while the first is attached; a second client supersedes the
// first. Frames are forwarded verbatim in both directions. When the client
// goes away the debugger receives a JSON-RPC "$disconnected" notification.
package broker

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

const (
	DefaultPath = "/debugger-proxy"

	// CloseCode is used for every connection the broker closes by policy.
	CloseCode = websocket.CloseInternalServerErr

	ReasonSuperseded       = "superseded"
	ReasonDebuggerAttached = "Another debugger is already connected"
	ReasonMissingRole      = "Missing role param"

	DisconnectedMethod = "$disconnected"
)

type Stats struct {
	DebuggerAttached bool  `json:"debuggerAttached"`
	ClientAttached   bool  `json:"clientAttached"`
	ToDebugger       int64 `json:"toDebugger"`
	ToClient         int64 `json:"toClient"`
	Dropped          int64 `json:"dropped"`
	Rejected         int64 `json:"rejected"`
	Superseded       int64 `json:"superseded"`
}

type Broker struct {
	state    *State
	upgrader websocket.Upgrader
	logger   *zap.Logger

	toDebugger atomic.Int64
	toClient   atomic.Int64
	dropped    atomic.Int64
	rejected   atomic.Int64
	superseded atomic.Int64
}

type Option func(*Broker)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(b *Broker) { b.upgrader.CheckOrigin = fn }
}

// WithState shares an existing State, mainly for tests.
func WithState(s *State) Option {
	return func(b *Broker) { b.state = s }
}

func New(opts ...Option) *Broker {
	b := &Broker{
		state:  NewState(),
		logger: zap.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IsDebuggerConnected reports whether a debugger is currently attached.
func (b *Broker) IsDebuggerConnected() bool {
	return b.state.current(RoleDebugger) != nil
}

func (b *Broker) Stats() Stats {
	return Stats{
		DebuggerAttached: b.state.current(RoleDebugger) != nil,
		ClientAttached:   b.state.current(RoleClient) != nil,
		ToDebugger:       b.toDebugger.Load(),
		ToClient:         b.toClient.Load(),
		Dropped:          b.dropped.Load(),
		Rejected:         b.rejected.Load(),
		Superseded:       b.superseded.Load(),
	}
}

func (b *Broker) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := Role(r.URL.Query().Get("role"))

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	p := newPeer(uuid.NewString(), role, conn)
	log := b.logger.With(zap.String("peer", p.id), zap.String("role", string(role)))

	if !role.Valid() {
		reason := ReasonMissingRole
		if role != "" {
			reason = "Unknown role: " + string(role)
		}
		log.Warn("rejecting connection", zap.String("reason", reason))
		b.rejected.Add(1)
		p.closeWith(CloseCode, reason)
		return
	}

	evicted, ok := b.state.attach(p)
	if !ok {
		log.Warn("debugger already attached, rejecting")
		b.rejected.Add(1)
		p.closeWith(CloseCode, ReasonDebuggerAttached)
		return
	}
	if evicted != nil {
		log.Info("superseding client", zap.String("evicted", evicted.id))
		b.superseded.Add(1)
		evicted.silenced.Store(true)
		evicted.closeWith(CloseCode, ReasonSuperseded)
	}
	log.Info("peer attached")

	defer b.disconnect(p, log)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if p.silenced.Load() {
			return
		}
		b.forward(p, messageType, data, log)
	}
}

func (b *Broker) forward(from *peer, messageType int, data []byte, log *zap.Logger) {
	to := b.state.current(from.role.Peer())
	if to == nil {
		b.dropped.Add(1)
		log.Debug("no peer attached, dropping message")
		return
	}
	if ce := log.Check(zap.DebugLevel, "forwarding message"); ce != nil {
		ce.Write(zap.String("to", string(to.role)), zap.String("method", methodOf(messageType, data)))
	}
	if err := to.write(messageType, data); err != nil {
		b.dropped.Add(1)
		log.Warn("forward failed", zap.String("to", string(to.role)), zap.Error(err))
		return
	}
	if to.role == RoleDebugger {
		b.toDebugger.Add(1)
	} else {
		b.toClient.Add(1)
	}
}

func (b *Broker) disconnect(p *peer, log *zap.Logger) {
	p.close()
	if p.silenced.Load() || !b.state.detach(p) {
		return
	}
	log.Info("peer detached")
	if p.role != RoleClient {
		return
	}
	debugger := b.state.current(RoleDebugger)
	if debugger == nil {
		return
	}
	data, err := disconnectedNotification()
	if err != nil {
		log.Error("encode disconnect notification", zap.Error(err))
		return
	}
	if err := debugger.write(websocket.TextMessage, data); err != nil {
		log.Warn("notify debugger failed", zap.Error(err))
	}
}

// Shutdown closes both peers.
func (b *Broker) Shutdown() {
	for _, p := range b.state.clear() {
		p.silenced.Store(true)
		p.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}

func disconnectedNotification() ([]byte, error) {
	n, err := jsonrpc2.NewNotification(DisconnectedMethod, nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// methodOf returns the JSON-RPC method carried by a text frame, if any.
func methodOf(messageType int, data []byte) string {
	if messageType != websocket.TextMessage {
		return ""
	}
	msg, err := jsonrpc2.DecodeMessage(data)
	if err != nil {
		return ""
	}
	switch m := msg.(type) {
	case *jsonrpc2.Call:
		return m.Method()
	case *jsonrpc2.Notification:
		return m.Method()
	}
	return ""
}
