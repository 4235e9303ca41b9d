package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

type packageJSON struct {
	Main        string `json:"main"`
	ReactNative any    `json:"react-native"`
}

// resolve maps specifier, required from the file at from, to an absolute
// file path.
func (p *Packager) resolve(from, specifier, platform string) (string, error) {
	var (
		target string
		ok     bool
	)
	switch {
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"),
		specifier == ".", specifier == "..":
		target, ok = p.resolveFile(filepath.Join(filepath.Dir(from), filepath.FromSlash(specifier)), platform)
	case strings.HasPrefix(specifier, "/"):
		target, ok = p.resolveFile(filepath.Join(p.root, filepath.FromSlash(specifier)), platform)
	default:
		target, ok = p.resolvePackage(from, specifier, platform)
	}
	if !ok {
		return "", &bundler.UnableToResolveError{
			Description: fmt.Sprintf("Unable to resolve module %s from %s", specifier, p.relative(from)),
			Filename:    from,
		}
	}
	return target, nil
}

// resolveFile tries base as a file, then with each source extension, then as
// a directory index.
func (p *Packager) resolveFile(base, platform string) (string, bool) {
	if isFile(base) {
		return base, true
	}
	if target, ok := p.withExtensions(base, platform); ok {
		return target, true
	}
	if isDir(base) {
		return p.withExtensions(filepath.Join(base, "index"), platform)
	}
	return "", false
}

func (p *Packager) withExtensions(base, platform string) (string, bool) {
	for _, ext := range p.sourceExts {
		candidates := make([]string, 0, 3)
		if platform != "" {
			candidates = append(candidates, base+"."+platform+"."+ext)
		}
		candidates = append(candidates, base+".native."+ext, base+"."+ext)
		for _, c := range candidates {
			if isFile(c) {
				return c, true
			}
		}
	}
	return "", false
}

// resolvePackage looks for specifier in node_modules directories from the
// requiring file up to the project root.
func (p *Packager) resolvePackage(from, specifier, platform string) (string, bool) {
	name, subpath := splitPackage(specifier)
	for dir := filepath.Dir(from); ; dir = filepath.Dir(dir) {
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if isDir(pkgDir) {
			if subpath != "" {
				return p.resolveFile(filepath.Join(pkgDir, filepath.FromSlash(subpath)), platform)
			}
			return p.resolveFile(filepath.Join(pkgDir, filepath.FromSlash(packageMain(pkgDir))), platform)
		}
		if dir == p.root || !strings.HasPrefix(dir, p.root) || dir == filepath.Dir(dir) {
			return "", false
		}
	}
}

func splitPackage(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name, subpath, _ = strings.Cut(specifier, "/")
	return name, subpath
}

func packageMain(pkgDir string) string {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return "index"
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "index"
	}
	if main, ok := pkg.ReactNative.(string); ok && main != "" {
		return path.Clean(main)
	}
	if pkg.Main != "" {
		return path.Clean(pkg.Main)
	}
	return "index"
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
