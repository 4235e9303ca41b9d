package bundler

// Resolution is the result of a dependency walk. It is reusable as the input
// of a partial re-resolution and as the module list of an HMR bundle.
// A Resolution is never mutated after it is returned by a Resolver.
type Resolution struct {
	Entry        string
	Platform     string
	Dependencies []*Module

	pairs map[string][]DependencyPair
}

// NewResolution builds a Resolution. pairs maps a module path to its resolved
// require specifiers; it may be nil.
func NewResolution(entry, platform string, deps []*Module, pairs map[string][]DependencyPair) *Resolution {
	if pairs == nil {
		pairs = make(map[string][]DependencyPair)
	}
	return &Resolution{
		Entry:        entry,
		Platform:     platform,
		Dependencies: deps,
		pairs:        pairs,
	}
}

// DependencyPairs returns the resolved require specifiers of the module at path.
func (r *Resolution) DependencyPairs(path string) []DependencyPair {
	return r.pairs[path]
}

// ResolveDependency returns the module that specifier resolves to when
// required from the module at path.
func (r *Resolution) ResolveDependency(path, specifier string) (*Module, bool) {
	for _, pair := range r.pairs[path] {
		if pair.Specifier == specifier && pair.Module != nil {
			return pair.Module, true
		}
	}
	return nil, false
}

// WithDependencies returns a copy of r restricted to deps, in the given order.
func (r *Resolution) WithDependencies(deps []*Module) *Resolution {
	out := make([]*Module, len(deps))
	copy(out, deps)
	return &Resolution{
		Entry:        r.Entry,
		Platform:     r.Platform,
		Dependencies: out,
		pairs:        r.pairs,
	}
}
