package hmr

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/bundler"
	"github.com/withgalaxy/devbridge/pkg/graph"
)

// Phase is where a session is in its change-diffing cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseComputing
	PhaseShallowEquivalent
	PhaseStructural
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComputing:
		return "computing"
	case PhaseShallowEquivalent:
		return "shallow-equivalent"
	case PhaseStructural:
		return "structural"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// SnapshotBuilder is the part of graph.Builder a session needs.
type SnapshotBuilder interface {
	Build(ctx context.Context, platform, entry string) (*graph.Snapshot, error)
}

// Session is the HMR state of one connection. The snapshot is replaced whole
// on structural changes; concurrent cycles on the same session follow
// last-snapshot-wins.
type Session struct {
	ID       string
	Platform string
	Entry    string

	resolver bundler.Resolver
	builder  SnapshotBuilder
	logger   *zap.Logger

	snapshot atomic.Pointer[graph.Snapshot]
	// inverse is captured when the session is created and never refreshed.
	inverse map[string][]string
	phase   atomic.Int32
	closed  atomic.Bool
}

// NewSession builds the initial snapshot for entry and returns a live session.
func NewSession(ctx context.Context, resolver bundler.Resolver, builder SnapshotBuilder, platform, entry string, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap, err := builder.Build(ctx, platform, entry)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Platform: platform,
		Entry:    entry,
		resolver: resolver,
		builder:  builder,
		inverse:  snap.InverseDependenciesCopy(),
	}
	s.logger = logger.With(zap.String("session", s.ID))
	s.snapshot.Store(snap)
	return s, nil
}

func (s *Session) Snapshot() *graph.Snapshot {
	return s.snapshot.Load()
}

// InverseDependencies returns the dependents map captured at session creation.
// Callers must not modify it.
func (s *Session) InverseDependencies() map[string][]string {
	return s.inverse
}

// Tracks reports whether filename is part of the current snapshot.
func (s *Session) Tracks(filename string) bool {
	return s.Snapshot().Tracks(filename)
}

func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Session) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *Session) Close() {
	s.closed.Store(true)
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}
