package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type Role string

const (
	RoleDebugger Role = "debugger"
	RoleClient   Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleDebugger || r == RoleClient
}

func (r Role) Peer() Role {
	if r == RoleDebugger {
		return RoleClient
	}
	return RoleDebugger
}

// peer is one connected socket. Writes are serialized; once silenced, frames
// read from it are dropped and its disconnect is not reported.
type peer struct {
	id   string
	role Role
	conn *websocket.Conn

	mu       sync.Mutex
	silenced atomic.Bool
	closed   atomic.Bool
}

func newPeer(id string, role Role, conn *websocket.Conn) *peer {
	return &peer{id: id, role: role, conn: conn}
}

func (p *peer) write(messageType int, data []byte) error {
	if p.closed.Load() {
		return websocket.ErrCloseSent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(messageType, data)
}

func (p *peer) closeWith(code int, reason string) {
	p.mu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	p.mu.Unlock()
	p.close()
}

func (p *peer) close() {
	if p.closed.Swap(true) {
		return
	}
	_ = p.conn.Close()
}

// State holds at most one debugger and at most one client. It is only
// changed through attach and detach.
type State struct {
	mu       sync.Mutex
	debugger *peer
	client   *peer
}

func NewState() *State {
	return &State{}
}

// attach installs p in its role. A debugger is refused when one is already
// attached. A client replaces the current client, which is returned so the
// caller can evict it.
func (s *State) attach(p *peer) (evicted *peer, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p.role {
	case RoleDebugger:
		if s.debugger != nil {
			return nil, false
		}
		s.debugger = p
	case RoleClient:
		evicted = s.client
		s.client = p
	}
	return evicted, true
}

// detach removes p if it still occupies its role.
func (s *State) detach(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case p.role == RoleDebugger && s.debugger == p:
		s.debugger = nil
	case p.role == RoleClient && s.client == p:
		s.client = nil
	default:
		return false
	}
	return true
}

func (s *State) current(role Role) *peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == RoleDebugger {
		return s.debugger
	}
	return s.client
}

func (s *State) clear() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var peers []*peer
	for _, p := range []*peer{s.debugger, s.client} {
		if p != nil {
			peers = append(peers, p)
		}
	}
	s.debugger, s.client = nil, nil
	return peers
}
