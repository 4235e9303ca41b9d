// Package bundler defines the contract devbridge consumes from the module
// bundler: dependency resolution, shallow dependency discovery and HMR bundle
// materialization.
package bundler

import (
	"context"
	"errors"
)

var ErrEmptyEntry = errors.New("entry file is required")

// Module is the handle the resolver hands out for one file in the graph.
type Module struct {
	Name    string
	Path    string
	IsAsset bool
	IsJSON  bool
}

// IsLeaf reports whether the module can never require anything.
func (m *Module) IsLeaf() bool {
	return m.IsAsset || m.IsJSON
}

// DependencyPair links a require specifier to the module it resolved to.
type DependencyPair struct {
	Specifier string
	Module    *Module
}

type DependencyOptions struct {
	Platform  string
	Entry     string
	Dev       bool
	Recursive bool
}

type HMROptions struct {
	Entry      string
	Platform   string
	Resolution *Resolution
	Host       string
	Port       int
}

type Resolver interface {
	GetDependencies(ctx context.Context, opts DependencyOptions) (*Resolution, error)
	GetShallowDependencies(ctx context.Context, path string) ([]string, error)
	GetModuleForPath(ctx context.Context, path string) (*Module, error)
}

type Builder interface {
	BuildBundleForHMR(ctx context.Context, opts HMROptions) (*Bundle, error)
}

// Packager is the full collaborator: resolver and HMR bundle builder.
type Packager interface {
	Resolver
	Builder
}
