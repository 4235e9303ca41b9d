package config

type LogFormat string

const (
	LogConsole LogFormat = "console"
	LogJSON    LogFormat = "json"
)

type Config struct {
	Root     string         `toml:"root" yaml:"root"`
	Entry    string         `toml:"entry" yaml:"entry"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	HMR      HMRConfig      `toml:"hmr" yaml:"hmr"`
	Debugger DebuggerConfig `toml:"debugger" yaml:"debugger"`
	Resolver ResolverConfig `toml:"resolver" yaml:"resolver"`
	Watch    WatchConfig    `toml:"watch" yaml:"watch"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Security SecurityConfig `toml:"security" yaml:"security"`
}

type ServerConfig struct {
	Port int    `toml:"port" yaml:"port"`
	Host string `toml:"host" yaml:"host"`
}

type HMRConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type DebuggerConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type ResolverConfig struct {
	Platforms   []string `toml:"platforms" yaml:"platforms"`
	SourceExts  []string `toml:"sourceExts" yaml:"sourceExts"`
	AssetExts   []string `toml:"assetExts" yaml:"assetExts"`
	Concurrency int      `toml:"concurrency" yaml:"concurrency"`
}

type WatchConfig struct {
	Ignore     []string `toml:"ignore" yaml:"ignore"`
	DebounceMs int      `toml:"debounceMs" yaml:"debounceMs"`
}

type LogConfig struct {
	Level  string    `toml:"level" yaml:"level"`
	Format LogFormat `toml:"format" yaml:"format"`
}

type SecurityConfig struct {
	CheckOrigin  bool     `toml:"checkOrigin" yaml:"checkOrigin"`
	AllowOrigins []string `toml:"allowOrigins" yaml:"allowOrigins"`
}

func DefaultConfig() *Config {
	return &Config{
		Root:  ".",
		Entry: "index.js",
		Server: ServerConfig{
			Port: 8081,
			Host: "0.0.0.0",
		},
		HMR: HMRConfig{
			Enabled: true,
			Path:    "/hot",
		},
		Debugger: DebuggerConfig{
			Enabled: true,
			Path:    "/debugger-proxy",
		},
		Resolver: ResolverConfig{
			Platforms:   []string{"ios", "android"},
			SourceExts:  []string{"js", "jsx", "ts", "tsx", "json"},
			AssetExts:   []string{"png", "jpg", "jpeg", "gif", "webp", "svg", "ttf", "otf", "mp4", "mp3"},
			Concurrency: 8,
		},
		Watch: WatchConfig{
			Ignore: []string{
				"**/node_modules",
				"**/node_modules/**",
				"**/.git",
				"**/.git/**",
			},
			DebounceMs: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogConsole,
		},
		Security: SecurityConfig{
			CheckOrigin:  true,
			AllowOrigins: []string{},
		},
	}
}
