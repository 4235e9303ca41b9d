package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileNames lists the config files LoadFromDir looks for, in order.
var FileNames = []string{"devbridge.toml", "devbridge.yaml", "devbridge.yml"}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads the first config file found in dir. Without one, the
// defaults apply with dir as the project root.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := DefaultConfig()
	cfg.Root = dir
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, choosing the encoding by extension.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.NewEncoder(f).Encode(c)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(c)
		if err == nil {
			err = enc.Close()
		}
	default:
		return fmt.Errorf("unsupported config format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Root == "" {
		c.Root = "."
	}

	if c.Entry == "" {
		c.Entry = "index.js"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8081
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	if c.HMR.Path == "" {
		c.HMR.Path = "/hot"
	}
	if c.Debugger.Path == "" {
		c.Debugger.Path = "/debugger-proxy"
	}
	for _, p := range []string{c.HMR.Path, c.Debugger.Path} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("invalid endpoint path: %s (must start with /)", p)
		}
	}
	if c.HMR.Enabled && c.Debugger.Enabled && c.HMR.Path == c.Debugger.Path {
		return fmt.Errorf("hmr.path and debugger.path must differ (both %s)", c.HMR.Path)
	}

	if len(c.Resolver.Platforms) == 0 {
		c.Resolver.Platforms = []string{"ios", "android"}
	}
	if len(c.Resolver.SourceExts) == 0 {
		c.Resolver.SourceExts = DefaultConfig().Resolver.SourceExts
	}
	c.Resolver.SourceExts = normalizeExts(c.Resolver.SourceExts)
	c.Resolver.AssetExts = normalizeExts(c.Resolver.AssetExts)
	if c.Resolver.Concurrency <= 0 {
		c.Resolver.Concurrency = 8
	}

	for _, pattern := range c.Watch.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern: %s", pattern)
		}
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("invalid debounce: %dms", c.Watch.DebounceMs)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case LogConsole, LogJSON:
	case "":
		c.Log.Format = LogConsole
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}

	return nil
}

func (c *Config) Addr() string {
	host := c.Server.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, c.Server.Port)
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// HasPlatform reports whether platform is one of the configured platforms.
func (c *Config) HasPlatform(platform string) bool {
	for _, p := range c.Resolver.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}
