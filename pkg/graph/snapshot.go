// Package graph builds dependency snapshots: self-consistent pictures of a
// bundle's module graph used to decide what a file change invalidates.
package graph

import (
	"github.com/withgalaxy/devbridge/pkg/bundler"
)

// Snapshot is an immutable view of the dependency graph rooted at Entry.
//
// Files and the keys of ShallowDependencies are the same set, and every
// module in Modules has its Path in Files.
type Snapshot struct {
	Platform string
	Entry    string

	// Files lists every file of the graph in resolver order.
	Files []string

	// ShallowDependencies maps a file to its direct require specifiers, in
	// source order.
	ShallowDependencies map[string][]string

	// Modules indexes module handles by module name. ModuleNames records the
	// order in which the resolver discovered them.
	Modules     map[string]*bundler.Module
	ModuleNames []string

	// InverseDependencies maps a file to the sorted files that require it.
	InverseDependencies map[string][]string

	Resolution *bundler.Resolution
}

// Tracks reports whether path is part of the snapshot.
func (s *Snapshot) Tracks(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ShallowDependencies[path]
	return ok
}

// ShallowDependenciesOf returns the cached direct specifiers of path.
func (s *Snapshot) ShallowDependenciesOf(path string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	deps, ok := s.ShallowDependencies[path]
	return deps, ok
}

// NewModulesSince returns the modules of s whose names are absent from prev,
// in discovery order. A nil prev yields every module.
func (s *Snapshot) NewModulesSince(prev *Snapshot) []*bundler.Module {
	var discovered []*bundler.Module
	for _, name := range s.ModuleNames {
		if prev != nil {
			if _, known := prev.Modules[name]; known {
				continue
			}
		}
		discovered = append(discovered, s.Modules[name])
	}
	return discovered
}

// InverseDependenciesCopy returns a deep copy safe to hand to other goroutines.
func (s *Snapshot) InverseDependenciesCopy() map[string][]string {
	out := make(map[string][]string, len(s.InverseDependencies))
	for k, v := range s.InverseDependencies {
		out[k] = append([]string(nil), v...)
	}
	return out
}
