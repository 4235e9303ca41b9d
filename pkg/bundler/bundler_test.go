package bundler

import "testing"

func TestResolutionResolveDependency(t *testing.T) {
	b := &Module{Name: "B.js", Path: "/app/B.js"}
	res := NewResolution("/app/A.js", "ios", []*Module{{Name: "A.js", Path: "/app/A.js"}, b},
		map[string][]DependencyPair{
			"/app/A.js": {{Specifier: "./B", Module: b}, {Specifier: "missing"}},
		})

	got, ok := res.ResolveDependency("/app/A.js", "./B")
	if !ok || got != b {
		t.Errorf("expected ./B to resolve to B.js, got %v %v", got, ok)
	}
	if _, ok := res.ResolveDependency("/app/A.js", "missing"); ok {
		t.Error("unresolved pair must not resolve")
	}
	if pairs := res.DependencyPairs("/app/B.js"); len(pairs) != 0 {
		t.Errorf("expected no pairs for B.js, got %d", len(pairs))
	}
}

func TestResolutionWithDependencies(t *testing.T) {
	a := &Module{Name: "A.js", Path: "/app/A.js"}
	b := &Module{Name: "B.js", Path: "/app/B.js"}
	res := NewResolution("/app/A.js", "ios", []*Module{a, b}, nil)

	deps := []*Module{b}
	partial := res.WithDependencies(deps)
	deps[0] = a

	if len(partial.Dependencies) != 1 || partial.Dependencies[0] != b {
		t.Errorf("WithDependencies must copy its input, got %v", partial.Dependencies)
	}
	if len(res.Dependencies) != 2 {
		t.Error("original resolution must not change")
	}
	if partial.Entry != res.Entry || partial.Platform != res.Platform {
		t.Error("entry and platform must carry over")
	}
}

func TestModuleIsLeaf(t *testing.T) {
	cases := []struct {
		mod  Module
		leaf bool
	}{
		{Module{Path: "a.js"}, false},
		{Module{Path: "a.json", IsJSON: true}, true},
		{Module{Path: "a.png", IsAsset: true}, true},
	}
	for _, c := range cases {
		if got := c.mod.IsLeaf(); got != c.leaf {
			t.Errorf("%s: expected leaf=%v, got %v", c.mod.Path, c.leaf, got)
		}
	}
}

func TestBundleURLs(t *testing.T) {
	var nilBundle *Bundle
	if !nilBundle.IsEmpty() {
		t.Error("nil bundle should be empty")
	}

	b := &Bundle{Modules: []BundleModule{
		{Name: "C.js", SourceURL: "http://localhost:8081/C.js", SourceMappingURL: "http://localhost:8081/C.js.map"},
		{Name: "A.js", SourceURL: "http://localhost:8081/A.js", SourceMappingURL: "http://localhost:8081/A.js.map"},
	}}
	if b.IsEmpty() {
		t.Fatal("bundle with modules is not empty")
	}
	urls := b.SourceURLs()
	if len(urls) != 2 || urls[1] != "http://localhost:8081/A.js" {
		t.Errorf("unexpected source urls %v", urls)
	}
	maps := b.SourceMappingURLs()
	if len(maps) != 2 || maps[0] != "http://localhost:8081/C.js.map" {
		t.Errorf("unexpected source map urls %v", maps)
	}
}

func TestErrorMessages(t *testing.T) {
	err := &TransformError{Description: "Unexpected token", Filename: "A.js", LineNumber: 3}
	if err.Error() != "A.js:3: Unexpected token" {
		t.Errorf("unexpected message %q", err.Error())
	}
	nf := &NotFoundError{Description: "File not found: A.js", Filename: "A.js"}
	if nf.Error() != "File not found: A.js" {
		t.Errorf("unexpected message %q", nf.Error())
	}
}
