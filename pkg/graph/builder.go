package graph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

const DefaultConcurrency = 8

// Builder produces snapshots by delegating resolution to a bundler.Resolver.
// It holds no per-snapshot state and is safe for concurrent use.
type Builder struct {
	resolver    bundler.Resolver
	concurrency int
	logger      *zap.Logger
}

type Option func(*Builder)

// WithConcurrency bounds the number of in-flight shallow dependency requests.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBuilder(resolver bundler.Resolver, opts ...Option) *Builder {
	b := &Builder{
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the full graph of entry and returns a new Snapshot.
func (b *Builder) Build(ctx context.Context, platform, entry string) (*Snapshot, error) {
	if entry == "" {
		return nil, bundler.ErrEmptyEntry
	}
	start := time.Now()

	res, err := b.resolver.GetDependencies(ctx, bundler.DependencyOptions{
		Platform:  platform,
		Entry:     entry,
		Dev:       true,
		Recursive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", entry, err)
	}

	deps := res.Dependencies
	shallow := make([][]string, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, mod := range deps {
		// Leaf resources have no requires; skip the request entirely.
		if mod.IsLeaf() {
			shallow[i] = []string{}
			continue
		}
		g.Go(func() error {
			specs, err := b.resolver.GetShallowDependencies(gctx, mod.Path)
			if err != nil {
				return fmt.Errorf("shallow dependencies of %s: %w", mod.Path, err)
			}
			if specs == nil {
				specs = []string{}
			}
			shallow[i] = specs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Platform:            platform,
		Entry:               entry,
		Files:               make([]string, 0, len(deps)),
		ShallowDependencies: make(map[string][]string, len(deps)),
		Modules:             make(map[string]*bundler.Module, len(deps)),
		ModuleNames:         make([]string, 0, len(deps)),
		Resolution:          res,
	}
	for i, mod := range deps {
		if _, dup := snap.ShallowDependencies[mod.Path]; !dup {
			snap.Files = append(snap.Files, mod.Path)
			snap.ShallowDependencies[mod.Path] = shallow[i]
		}
		if _, dup := snap.Modules[mod.Name]; !dup {
			snap.Modules[mod.Name] = mod
			snap.ModuleNames = append(snap.ModuleNames, mod.Name)
		}
	}
	snap.InverseDependencies = invert(snap.Files, snap.ShallowDependencies, res)

	b.logger.Debug("snapshot built",
		zap.String("entry", entry),
		zap.String("platform", platform),
		zap.Int("files", len(snap.Files)),
		zap.Duration("took", time.Since(start)))

	return snap, nil
}

// invert derives dependents from the shallow map, resolving each specifier
// through the resolution. Unresolved specifiers are skipped.
func invert(files []string, shallow map[string][]string, res *bundler.Resolution) map[string][]string {
	inverse := make(map[string][]string)
	for _, file := range files {
		for _, spec := range shallow[file] {
			target, ok := res.ResolveDependency(file, spec)
			if !ok {
				continue
			}
			inverse[target.Path] = append(inverse[target.Path], file)
		}
	}
	for path, dependents := range inverse {
		slices.Sort(dependents)
		inverse[path] = slices.Compact(dependents)
	}
	return inverse
}
