// Package testutil provides an in-memory bundler collaborator for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

type fakeFile struct {
	module *bundler.Module
	code   string
	deps   []string
}

// FakePackager implements bundler.Packager over an in-memory graph where a
// require specifier is the path of the file it resolves to.
type FakePackager struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	calls   map[string]int
	errs    map[string]error
	lastHMR bundler.HMROptions

	// BeforeShallow, when set, runs at the start of GetShallowDependencies.
	BeforeShallow func(path string)
}

func NewFakePackager() *FakePackager {
	return &FakePackager{
		files: make(map[string]*fakeFile),
		calls: make(map[string]int),
		errs:  make(map[string]error),
	}
}

// AddFile adds or replaces a source file requiring deps, in order.
func (p *FakePackager) AddFile(path, code string, deps ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[path]
	if !ok {
		f = &fakeFile{module: &bundler.Module{Name: path, Path: path}}
		p.files[path] = f
	}
	f.code = code
	f.deps = append([]string(nil), deps...)
}

// AddAsset adds a leaf asset file.
func (p *FakePackager) AddAsset(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = &fakeFile{
		module: &bundler.Module{Name: path, Path: path, IsAsset: true},
		code:   fmt.Sprintf("module.exports = %q;", path),
	}
}

// AddJSON adds a leaf JSON file.
func (p *FakePackager) AddJSON(path, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = &fakeFile{
		module: &bundler.Module{Name: path, Path: path, IsJSON: true},
		code:   "module.exports = " + content + ";",
	}
}

func (p *FakePackager) Remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

// Fail makes every call of method fail with err until cleared with a nil err.
func (p *FakePackager) Fail(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, method)
		return
	}
	p.errs[method] = err
}

// Calls returns how many times method was invoked.
func (p *FakePackager) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// LastHMROptions returns the options of the latest BuildBundleForHMR call.
func (p *FakePackager) LastHMROptions() bundler.HMROptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHMR
}

func (p *FakePackager) enter(method string) error {
	p.calls[method]++
	return p.errs[method]
}

func (p *FakePackager) GetDependencies(ctx context.Context, opts bundler.DependencyOptions) (*bundler.Resolution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetDependencies"); err != nil {
		return nil, err
	}

	entry, ok := p.files[opts.Entry]
	if !ok {
		return nil, &bundler.NotFoundError{
			Description: "File not found: " + opts.Entry,
			Filename:    opts.Entry,
		}
	}

	pairs := make(map[string][]bundler.DependencyPair)
	deps := []*bundler.Module{entry.module}
	seen := map[string]bool{opts.Entry: true}
	queue := []*fakeFile{entry}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, spec := range f.deps {
			dep, ok := p.files[spec]
			if !ok {
				return nil, &bundler.UnableToResolveError{
					Description: fmt.Sprintf("Unable to resolve module %s", spec),
					Filename:    f.module.Path,
				}
			}
			pairs[f.module.Path] = append(pairs[f.module.Path], bundler.DependencyPair{Specifier: spec, Module: dep.module})
			if !opts.Recursive || seen[spec] {
				continue
			}
			seen[spec] = true
			deps = append(deps, dep.module)
			queue = append(queue, dep)
		}
		if !opts.Recursive {
			break
		}
	}

	return bundler.NewResolution(opts.Entry, opts.Platform, deps, pairs), nil
}

func (p *FakePackager) GetShallowDependencies(ctx context.Context, path string) ([]string, error) {
	if p.BeforeShallow != nil {
		p.BeforeShallow(path)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetShallowDependencies"); err != nil {
		return nil, err
	}
	f, ok := p.files[path]
	if !ok {
		return nil, &bundler.NotFoundError{Description: "File not found: " + path, Filename: path}
	}
	return append([]string(nil), f.deps...), nil
}

func (p *FakePackager) GetModuleForPath(ctx context.Context, path string) (*bundler.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetModuleForPath"); err != nil {
		return nil, err
	}
	f, ok := p.files[path]
	if !ok {
		return nil, &bundler.NotFoundError{Description: "File not found: " + path, Filename: path}
	}
	return f.module, nil
}

func (p *FakePackager) BuildBundleForHMR(ctx context.Context, opts bundler.HMROptions) (*bundler.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("BuildBundleForHMR"); err != nil {
		return nil, err
	}
	p.lastHMR = opts

	bundle := &bundler.Bundle{}
	for _, m := range opts.Resolution.Dependencies {
		code := ""
		if f, ok := p.files[m.Path]; ok {
			code = f.code
		}
		base := fmt.Sprintf("http://%s:%d/%s", opts.Host, opts.Port, m.Name)
		bundle.Modules = append(bundle.Modules, bundler.BundleModule{
			Name:             m.Name,
			Code:             code,
			SourceURL:        base,
			SourceMappingURL: base + ".map",
		})
	}
	return bundle, nil
}
