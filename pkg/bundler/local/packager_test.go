package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/withgalaxy/devbridge/pkg/bundler"
	"github.com/withgalaxy/devbridge/pkg/graph"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newTestPackager(t *testing.T, files map[string]string) *Packager {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	p, err := New(Options{Root: root, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func names(mods []*bundler.Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Name
	}
	return out
}

var project = map[string]string{
	"index.js":                               "import App from './src/App';\nimport data from './data.json';\n",
	"data.json":                              `{"answer": 42}`,
	"src/App.js":                             "const React = require('react');\nconst Button = require('./Button');\nconst logo = require('./logo.png');\n",
	"src/Button.ios.js":                      "module.exports = 'ios';\n",
	"src/Button.js":                          "module.exports = 'default';\n",
	"src/logo.png":                           "png",
	"node_modules/react/package.json":        `{"main": "lib/react.js"}`,
	"node_modules/react/lib/react.js":        "module.exports = {};\n",
	"node_modules/@scope/pkg/index.js":       "module.exports = 1;\n",
	"node_modules/@scope/pkg/sub/feature.js": "module.exports = 2;\n",
}

func TestGetDependencies_Recursive(t *testing.T) {
	p := newTestPackager(t, project)
	res, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{
		Platform:  "ios",
		Entry:     "index.js",
		Dev:       true,
		Recursive: true,
	})
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}

	want := []string{"index.js", "src/App.js", "data.json", "node_modules/react/lib/react.js", "src/Button.ios.js", "src/logo.png"}
	if got := names(res.Dependencies); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	app := filepath.Join(p.Root(), "src", "App.js")
	button, ok := res.ResolveDependency(app, "./Button")
	if !ok || button.Name != "src/Button.ios.js" {
		t.Errorf("expected ./Button to resolve to the ios variant, got %v", button)
	}
	logo, _ := res.ResolveDependency(app, "./logo.png")
	if logo == nil || !logo.IsAsset || !logo.IsLeaf() {
		t.Errorf("expected logo.png to be an asset leaf, got %+v", logo)
	}
}

func TestGetDependencies_PlatformFallback(t *testing.T) {
	p := newTestPackager(t, project)
	res, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{
		Platform:  "android",
		Entry:     "index.js",
		Recursive: true,
	})
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if !slices.Contains(names(res.Dependencies), "src/Button.js") {
		t.Errorf("expected generic Button.js on android, got %v", names(res.Dependencies))
	}
}

func TestGetDependencies_NonRecursive(t *testing.T) {
	p := newTestPackager(t, project)
	entry := filepath.Join(p.Root(), "src", "App.js")
	res, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{
		Platform: "ios",
		Entry:    entry,
	})
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if got := names(res.Dependencies); !slices.Equal(got, []string{"src/App.js"}) {
		t.Errorf("expected only the entry, got %v", got)
	}
	if len(res.DependencyPairs(entry)) != 3 {
		t.Errorf("expected the entry's requires to be resolved, got %v", res.DependencyPairs(entry))
	}
}

func TestGetDependencies_ScopedPackages(t *testing.T) {
	p := newTestPackager(t, map[string]string{
		"index.js":                               "require('@scope/pkg');\nrequire('@scope/pkg/sub/feature');\n",
		"node_modules/@scope/pkg/index.js":       "",
		"node_modules/@scope/pkg/sub/feature.js": "",
	})
	res, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{Entry: "index.js", Recursive: true})
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	want := []string{"index.js", "node_modules/@scope/pkg/index.js", "node_modules/@scope/pkg/sub/feature.js"}
	if got := names(res.Dependencies); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGetDependencies_Errors(t *testing.T) {
	p := newTestPackager(t, map[string]string{
		"index.js": "require('./missing');\n",
	})

	_, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{Entry: "nope.js", Recursive: true})
	var nf *bundler.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	_, err = p.GetDependencies(context.Background(), bundler.DependencyOptions{Entry: "index.js", Recursive: true})
	var ur *bundler.UnableToResolveError
	if !errors.As(err, &ur) {
		t.Fatalf("expected UnableToResolveError, got %v", err)
	}
	if !strings.Contains(ur.Description, "./missing") {
		t.Errorf("expected description to name the specifier, got %q", ur.Description)
	}

	if _, err := p.GetDependencies(context.Background(), bundler.DependencyOptions{}); !errors.Is(err, bundler.ErrEmptyEntry) {
		t.Errorf("expected ErrEmptyEntry, got %v", err)
	}
}

func TestGetShallowDependencies_CacheInvalidation(t *testing.T) {
	p := newTestPackager(t, map[string]string{
		"a.js": "require('./b');\n",
	})
	path := filepath.Join(p.Root(), "a.js")

	specs, err := p.GetShallowDependencies(context.Background(), path)
	if err != nil {
		t.Fatalf("GetShallowDependencies failed: %v", err)
	}
	if !slices.Equal(specs, []string{"./b"}) {
		t.Fatalf("expected [./b], got %v", specs)
	}

	if err := os.WriteFile(path, []byte("require('./b');\nrequire('./c');\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	specs, err = p.GetShallowDependencies(context.Background(), path)
	if err != nil {
		t.Fatalf("GetShallowDependencies failed: %v", err)
	}
	if !slices.Equal(specs, []string{"./b", "./c"}) {
		t.Errorf("expected cache to be invalidated, got %v", specs)
	}
}

func TestGetShallowDependencies_Leaf(t *testing.T) {
	p := newTestPackager(t, map[string]string{"data.json": "{}"})
	specs, err := p.GetShallowDependencies(context.Background(), "data.json")
	if err != nil {
		t.Fatalf("GetShallowDependencies failed: %v", err)
	}
	if specs == nil || len(specs) != 0 {
		t.Errorf("expected empty list, got %#v", specs)
	}
}

func TestGetModuleForPath(t *testing.T) {
	p := newTestPackager(t, project)
	mod, err := p.GetModuleForPath(context.Background(), filepath.Join(p.Root(), "data.json"))
	if err != nil {
		t.Fatalf("GetModuleForPath failed: %v", err)
	}
	if mod.Name != "data.json" || !mod.IsJSON {
		t.Errorf("unexpected module %+v", mod)
	}

	_, err = p.GetModuleForPath(context.Background(), "gone.js")
	var nf *bundler.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestBuildBundleForHMR(t *testing.T) {
	p := newTestPackager(t, project)
	root := p.Root()
	res := bundler.NewResolution("index.js", "ios", []*bundler.Module{
		p.module(filepath.Join(root, "src", "logo.png")),
		p.module(filepath.Join(root, "data.json")),
		p.module(filepath.Join(root, "src", "Button.ios.js")),
	}, nil)

	bundle, err := p.BuildBundleForHMR(context.Background(), bundler.HMROptions{
		Entry:      "index.js",
		Platform:   "ios",
		Resolution: res,
		Host:       "localhost",
		Port:       8081,
	})
	if err != nil {
		t.Fatalf("BuildBundleForHMR failed: %v", err)
	}
	if len(bundle.Modules) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(bundle.Modules))
	}

	asset := bundle.Modules[0]
	if !strings.Contains(asset.Code, `"uri":"http://localhost:8081/assets/src/logo.png"`) {
		t.Errorf("unexpected asset code %s", asset.Code)
	}

	data := bundle.Modules[1]
	if !strings.Contains(data.Code, `module.exports = {"answer": 42};`) {
		t.Errorf("unexpected json code %s", data.Code)
	}

	src := bundle.Modules[2]
	if !strings.HasPrefix(src.Code, "__d(function(global, require, module, exports) {") {
		t.Errorf("expected module wrapper, got %s", src.Code)
	}
	if !strings.HasSuffix(src.Code, `}, "src/Button.ios.js");`) {
		t.Errorf("expected module name in wrapper, got %s", src.Code)
	}
	if src.SourceURL != "http://localhost:8081/src/Button.ios.js?platform=ios&dev=true" {
		t.Errorf("unexpected source url %s", src.SourceURL)
	}
	if src.SourceMappingURL != "http://localhost:8081/src/Button.ios.js.map?platform=ios&dev=true" {
		t.Errorf("unexpected source map url %s", src.SourceMappingURL)
	}
}

func TestBuildBundleForHMR_InvalidJSON(t *testing.T) {
	p := newTestPackager(t, map[string]string{"bad.json": "{"})
	res := bundler.NewResolution("bad.json", "ios", []*bundler.Module{p.module(filepath.Join(p.Root(), "bad.json"))}, nil)
	_, err := p.BuildBundleForHMR(context.Background(), bundler.HMROptions{Resolution: res, Host: "localhost", Port: 8081})
	var te *bundler.TransformError
	if !errors.As(err, &te) {
		t.Errorf("expected TransformError, got %v", err)
	}
}

func TestEntryPath(t *testing.T) {
	p := newTestPackager(t, nil)
	if got := p.EntryPath("/index.bundle"); got != filepath.Join(p.Root(), "index.js") {
		t.Errorf("unexpected entry path %s", got)
	}
	if got := p.EntryPath("src/main.tsx"); got != filepath.Join(p.Root(), "src", "main.tsx") {
		t.Errorf("unexpected entry path %s", got)
	}
}

func TestSnapshotOverFilesystem(t *testing.T) {
	p := newTestPackager(t, project)
	snap, err := graph.NewBuilder(p).Build(context.Background(), "ios", p.EntryPath("index.bundle"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	button := filepath.Join(p.Root(), "src", "Button.ios.js")
	app := filepath.Join(p.Root(), "src", "App.js")
	if got := snap.InverseDependencies[button]; !slices.Equal(got, []string{app}) {
		t.Errorf("expected Button.ios.js <- App.js, got %v", got)
	}
	logo := filepath.Join(p.Root(), "src", "logo.png")
	if deps, ok := snap.ShallowDependenciesOf(logo); !ok || deps == nil || len(deps) != 0 {
		t.Errorf("expected empty shallow list for asset, got %#v", deps)
	}
}
