// Package local is a filesystem packager: it resolves requires under a
// project root and wraps modules for hot swapping. It performs no code
// transformation.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

var (
	DefaultSourceExts = []string{"js", "jsx", "ts", "tsx", "json"}
	DefaultAssetExts  = []string{"png", "jpg", "jpeg", "gif", "webp", "svg", "ttf", "otf", "mp4", "mp3"}
)

type Options struct {
	Root       string
	SourceExts []string
	AssetExts  []string
	Logger     *zap.Logger
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	specs   []string
}

type Packager struct {
	root       string
	sourceExts []string
	assetExts  map[string]bool
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

var _ bundler.Packager = (*Packager)(nil)

func New(opts Options) (*Packager, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if !isDir(root) {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}
	if opts.SourceExts == nil {
		opts.SourceExts = DefaultSourceExts
	}
	if opts.AssetExts == nil {
		opts.AssetExts = DefaultAssetExts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	assets := make(map[string]bool, len(opts.AssetExts))
	for _, ext := range opts.AssetExts {
		assets[strings.TrimPrefix(ext, ".")] = true
	}

	return &Packager{
		root:       root,
		sourceExts: opts.SourceExts,
		assetExts:  assets,
		logger:     opts.Logger,
		cache:      make(map[string]cacheEntry),
	}, nil
}

func (p *Packager) Root() string {
	return p.root
}

// EntryPath maps a client-supplied bundle entry such as "index.bundle" or
// "src/main.js" to an absolute path under the root.
func (p *Packager) EntryPath(entry string) string {
	entry = strings.TrimPrefix(entry, "/")
	if strings.HasSuffix(entry, ".bundle") {
		entry = strings.TrimSuffix(entry, ".bundle") + ".js"
	}
	return filepath.Join(p.root, filepath.FromSlash(entry))
}

func (p *Packager) relative(path string) string {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (p *Packager) module(path string) *bundler.Module {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return &bundler.Module{
		Name:    p.relative(path),
		Path:    path,
		IsAsset: p.assetExts[ext],
		IsJSON:  ext == "json",
	}
}

func (p *Packager) GetModuleForPath(ctx context.Context, path string) (*bundler.Module, error) {
	path = p.absolute(path)
	if !isFile(path) {
		return nil, &bundler.NotFoundError{
			Description: fmt.Sprintf("File %s does not exist", p.relative(path)),
			Filename:    path,
		}
	}
	return p.module(path), nil
}

// GetShallowDependencies returns the specifiers path requires directly.
// Results are cached until the file's size or modification time changes.
func (p *Packager) GetShallowDependencies(ctx context.Context, path string) ([]string, error) {
	path = p.absolute(path)
	mod := p.module(path)
	if mod.IsLeaf() {
		return []string{}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &bundler.NotFoundError{
			Description: fmt.Sprintf("File %s does not exist", mod.Name),
			Filename:    path,
		}
	}

	p.mu.Lock()
	entry, ok := p.cache[path]
	p.mu.Unlock()
	if ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		return slices.Clone(entry.specs), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", mod.Name, err)
	}
	specs, err := ExtractRequires(path, content)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), specs: specs}
	p.mu.Unlock()

	p.logger.Debug("extracted requires", zap.String("file", mod.Name), zap.Int("count", len(specs)))
	return slices.Clone(specs), nil
}

// GetDependencies walks the graph breadth first from opts.Entry. Without
// Recursive only the entry module is returned, though its own requires are
// still resolved.
func (p *Packager) GetDependencies(ctx context.Context, opts bundler.DependencyOptions) (*bundler.Resolution, error) {
	if opts.Entry == "" {
		return nil, bundler.ErrEmptyEntry
	}
	entry := p.absolute(opts.Entry)
	if !isFile(entry) {
		return nil, &bundler.NotFoundError{
			Description: fmt.Sprintf("Cannot find entry file %s in %s", p.relative(entry), p.root),
			Filename:    entry,
		}
	}

	var (
		deps    []*bundler.Module
		pairs   = make(map[string][]bundler.DependencyPair)
		modules = map[string]*bundler.Module{entry: p.module(entry)}
		queue   = []string{entry}
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := queue[0]
		queue = queue[1:]
		mod := modules[path]
		deps = append(deps, mod)

		if mod.IsLeaf() {
			continue
		}
		specs, err := p.GetShallowDependencies(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			target, err := p.resolve(path, spec, opts.Platform)
			if err != nil {
				return nil, err
			}
			dep, seen := modules[target]
			if !seen {
				dep = p.module(target)
				modules[target] = dep
				if opts.Recursive {
					queue = append(queue, target)
				}
			}
			pairs[path] = append(pairs[path], bundler.DependencyPair{Specifier: spec, Module: dep})
		}
	}

	return bundler.NewResolution(entry, opts.Platform, deps, pairs), nil
}

func (p *Packager) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.root, filepath.FromSlash(path))
}
