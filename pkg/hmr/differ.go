package hmr

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

// UpdateBatch is the set of modules one change cycle re-sends, in the order
// the client must apply them.
type UpdateBatch struct {
	Modules             []*bundler.Module
	Resolution          *bundler.Resolution
	InverseDependencies map[string][]string
	Structural          bool
}

// ComputeUpdate decides which modules a change to filename invalidates.
//
// When filename's direct requires are unchanged only filename itself is
// re-sent and no full graph walk happens. Otherwise the snapshot is rebuilt,
// newly discovered modules are added and the session snapshot is replaced.
// A nil batch means the session no longer tracks filename.
func (s *Session) ComputeUpdate(ctx context.Context, filename string) (*UpdateBatch, error) {
	s.setPhase(PhaseComputing)
	defer s.setPhase(PhaseIdle)

	prev := s.Snapshot()
	deps, err := s.resolver.GetShallowDependencies(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("shallow dependencies of %s: %w", filename, err)
	}
	cached, known := prev.ShallowDependenciesOf(filename)

	var batch *UpdateBatch
	if shallowEquivalent(deps, cached, known) {
		s.setPhase(PhaseShallowEquivalent)
		batch, err = s.shallowUpdate(ctx, filename)
	} else {
		s.setPhase(PhaseStructural)
		batch, err = s.structuralUpdate(ctx, filename)
	}
	if err != nil {
		return nil, err
	}

	if s.Closed() || !s.Tracks(filename) {
		s.logger.Debug("change outside tracked graph", zap.String("file", filename))
		return nil, nil
	}
	return batch, nil
}

func (s *Session) shallowUpdate(ctx context.Context, filename string) (*UpdateBatch, error) {
	res, err := s.resolver.GetDependencies(ctx, bundler.DependencyOptions{
		Platform:  s.Platform,
		Entry:     filename,
		Dev:       true,
		Recursive: false,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", filename, err)
	}
	mod, err := s.resolver.GetModuleForPath(ctx, filename)
	if err != nil {
		return nil, err
	}

	modules := []*bundler.Module{mod}
	return &UpdateBatch{
		Modules:             modules,
		Resolution:          res.WithDependencies(modules),
		InverseDependencies: s.inverse,
	}, nil
}

func (s *Session) structuralUpdate(ctx context.Context, filename string) (*UpdateBatch, error) {
	prev := s.Snapshot()
	next, err := s.builder.Build(ctx, s.Platform, s.Entry)
	if err != nil {
		return nil, err
	}
	changed, err := s.resolver.GetModuleForPath(ctx, filename)
	if err != nil {
		return nil, err
	}

	discovered := slices.DeleteFunc(next.NewModulesSince(prev), func(m *bundler.Module) bool {
		return m.Name == changed.Name
	})
	modules := OrderForHotSwap(changed, discovered)

	s.snapshot.Store(next)
	s.logger.Debug("snapshot replaced",
		zap.String("file", filename),
		zap.Int("discovered", len(discovered)))

	return &UpdateBatch{
		Modules:             modules,
		Resolution:          next.Resolution.WithDependencies(modules),
		InverseDependencies: s.inverse,
		Structural:          true,
	}, nil
}

// shallowEquivalent compares fresh and cached specifiers as ordered
// sequences. A file with no cached entry is never equivalent.
func shallowEquivalent(fresh, cached []string, known bool) bool {
	return known && slices.Equal(fresh, cached)
}

// OrderForHotSwap returns reverse([changed] ++ discovered).
//
// The resolver reports new modules breadth first from the changed file
// outward. The client must define leaves first and re-execute the changed
// file last, once everything it requires exists.
func OrderForHotSwap(changed *bundler.Module, discovered []*bundler.Module) []*bundler.Module {
	ordered := make([]*bundler.Module, 0, len(discovered)+1)
	ordered = append(ordered, changed)
	ordered = append(ordered, discovered...)
	slices.Reverse(ordered)
	return ordered
}
