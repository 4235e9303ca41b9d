package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/withgalaxy/devbridge/pkg/bundler"
)

type assetRecord struct {
	PackagerAsset bool   `json:"__packager_asset"`
	URI           string `json:"uri"`
	Name          string `json:"name"`
	Type          string `json:"type"`
}

// BuildBundleForHMR wraps every module of opts.Resolution, in order, as a
// module definition the client runtime can evaluate.
func (p *Packager) BuildBundleForHMR(ctx context.Context, opts bundler.HMROptions) (*bundler.Bundle, error) {
	if opts.Resolution == nil {
		return &bundler.Bundle{}, nil
	}
	base := "http://" + net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	bundle := &bundler.Bundle{Modules: make([]bundler.BundleModule, 0, len(opts.Resolution.Dependencies))}
	for _, mod := range opts.Resolution.Dependencies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := p.moduleBody(mod, base)
		if err != nil {
			return nil, err
		}
		sourceURL := fmt.Sprintf("%s/%s?platform=%s&dev=true", base, escapePath(mod.Name), url.QueryEscape(opts.Platform))
		bundle.Modules = append(bundle.Modules, bundler.BundleModule{
			Name:             mod.Name,
			Code:             wrapModule(mod.Name, body),
			SourceURL:        sourceURL,
			SourceMappingURL: strings.Replace(sourceURL, "?", ".map?", 1),
		})
	}
	return bundle, nil
}

func (p *Packager) moduleBody(mod *bundler.Module, base string) (string, error) {
	if mod.IsAsset {
		ext := strings.TrimPrefix(filepath.Ext(mod.Name), ".")
		record, err := json.Marshal(assetRecord{
			PackagerAsset: true,
			URI:           base + "/assets/" + escapePath(mod.Name),
			Name:          strings.TrimSuffix(filepath.Base(mod.Name), "."+ext),
			Type:          ext,
		})
		if err != nil {
			return "", fmt.Errorf("encode asset %s: %w", mod.Name, err)
		}
		return "module.exports = " + string(record) + ";", nil
	}

	content, err := os.ReadFile(mod.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &bundler.NotFoundError{
				Description: fmt.Sprintf("File %s does not exist", mod.Name),
				Filename:    mod.Path,
			}
		}
		return "", fmt.Errorf("read %s: %w", mod.Name, err)
	}

	if mod.IsJSON {
		if !json.Valid(content) {
			return "", &bundler.TransformError{
				Description: "SyntaxError: invalid JSON",
				Filename:    mod.Path,
			}
		}
		return "module.exports = " + strings.TrimSpace(string(content)) + ";", nil
	}
	return string(content), nil
}

func wrapModule(name, body string) string {
	quoted, _ := json.Marshal(name)
	return "__d(function(global, require, module, exports) {\n" + body + "\n}, " + string(quoted) + ");"
}

func escapePath(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
