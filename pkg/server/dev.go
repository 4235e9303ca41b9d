package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/withgalaxy/devbridge/pkg/broker"
	"github.com/withgalaxy/devbridge/pkg/bundler/local"
	"github.com/withgalaxy/devbridge/pkg/config"
	"github.com/withgalaxy/devbridge/pkg/graph"
	"github.com/withgalaxy/devbridge/pkg/hmr"
	"github.com/withgalaxy/devbridge/pkg/security"
	"github.com/withgalaxy/devbridge/pkg/watcher"
)

const (
	StatusPath    = "/status"
	StatusRunning = "packager-status:running"

	shutdownTimeout = 5 * time.Second
)

type DevServer struct {
	Config    *config.Config
	Packager  *local.Packager
	Watcher   *watcher.Watcher
	HMRServer *hmr.Server
	Broker    *broker.Broker
	Router    chi.Router
	Verbose   bool

	origins *security.OriginPolicy
	logger  *zap.Logger
}

func NewDevServer(cfg *config.Config, logger *zap.Logger, verbose bool) (*DevServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	packager, err := local.New(local.Options{
		Root:       cfg.Root,
		SourceExts: cfg.Resolver.SourceExts,
		AssetExts:  cfg.Resolver.AssetExts,
		Logger:     logger.Named("packager"),
	})
	if err != nil {
		return nil, fmt.Errorf("create packager: %w", err)
	}

	srv := &DevServer{
		Config:   cfg,
		Packager: packager,
		Verbose:  verbose,
		origins: security.NewOriginPolicy(security.OriginConfig{
			CheckOrigin:  cfg.Security.CheckOrigin,
			AllowOrigins: cfg.Security.AllowOrigins,
		}),
		logger: logger,
	}

	if cfg.HMR.Enabled {
		w, err := watcher.New(packager.Root(), watcher.Options{
			Ignore:   cfg.Watch.Ignore,
			Debounce: cfg.Debounce(),
			Logger:   logger.Named("watcher"),
		})
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		srv.Watcher = w

		builder := graph.NewBuilder(packager,
			graph.WithConcurrency(cfg.Resolver.Concurrency),
			graph.WithLogger(logger.Named("graph")))
		srv.HMRServer = hmr.NewServer(packager, w,
			hmr.WithLogger(logger.Named("hmr")),
			hmr.WithSnapshotBuilder(builder),
			hmr.WithEntryPath(srv.entryPath),
			hmr.WithCheckOrigin(srv.origins.CheckOrigin))
	}

	if cfg.Debugger.Enabled {
		srv.Broker = broker.New(
			broker.WithLogger(logger.Named("broker")),
			broker.WithCheckOrigin(srv.origins.CheckOrigin))
	}

	srv.Router = srv.routes()
	return srv, nil
}

func (s *DevServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)
	r.Use(s.origins.Middleware)

	r.Get(StatusPath, s.handleStatus)

	if s.HMRServer != nil {
		r.Get(s.Config.HMR.Path, s.handleHMR)
	}

	if s.Broker != nil {
		r.Get(s.Config.Debugger.Path, s.Broker.HandleWebSocket)
		r.Get(s.Config.Debugger.Path+"/status", s.handleDebuggerStatus)
		r.Get(s.Config.Debugger.Path+"/stats", s.handleDebuggerStats)
	}

	r.Get("/assets/*", s.serveAsset)

	return r
}

// entryPath maps the bundleEntry query parameter to a file under the root.
func (s *DevServer) entryPath(entry string) string {
	if entry == "" {
		entry = s.Config.Entry
	}
	return s.Packager.EntryPath(entry)
}

func (s *DevServer) handleHMR(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if !s.Config.HasPlatform(platform) {
		http.Error(w, fmt.Sprintf("unsupported platform %q", platform), http.StatusBadRequest)
		return
	}
	s.HMRServer.HandleWebSocket(w, r)
}

func (s *DevServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, StatusRunning)
}

func (s *DevServer) handleDebuggerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"attached": s.Broker.IsDebuggerConnected()})
}

func (s *DevServer) handleDebuggerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Broker.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveAsset serves asset files referenced by HMR bundles.
func (s *DevServer) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	path := filepath.Join(s.Packager.Root(), filepath.FromSlash(name))
	if !strings.HasPrefix(path, s.Packager.Root()+string(filepath.Separator)) {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// Start listens on the configured address and serves until ctx is done.
func (s *DevServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server, the file watcher and shutdown handling on ln.
func (s *DevServer) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.HMRServer != nil {
		s.HMRServer.SetAddr(ln.Addr())
	}
	s.printBanner(ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	if s.Watcher != nil {
		g.Go(func() error {
			if err := s.Watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		s.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown closes every WebSocket connection and the watcher.
func (s *DevServer) Shutdown() {
	if s.HMRServer != nil {
		s.HMRServer.Shutdown()
	}
	if s.Broker != nil {
		stats := s.Broker.Stats()
		s.logger.Debug("broker stats",
			zap.Int64("toDebugger", stats.ToDebugger),
			zap.Int64("toClient", stats.ToClient),
			zap.Int64("dropped", stats.Dropped))
		s.Broker.Shutdown()
	}
	if s.Watcher != nil {
		_ = s.Watcher.Close()
	}
}

func (s *DevServer) printBanner(addr net.Addr) {
	host, port := hmr.PackagerHost(addr)
	base := fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(port)))
	fmt.Printf("🚀 devbridge running at %s\n", base)
	fmt.Printf("📁 Root: %s\n", s.Packager.Root())
	if s.HMRServer != nil {
		fmt.Printf("🔥 HMR: %s%s\n", strings.Replace(base, "http", "ws", 1), s.Config.HMR.Path)
	}
	if s.Broker != nil {
		fmt.Printf("🐞 Debugger: %s%s\n", strings.Replace(base, "http", "ws", 1), s.Config.Debugger.Path)
	}
	fmt.Println()
}

func (s *DevServer) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", duration),
			zap.String("requestID", middleware.GetReqID(r.Context())))

		if s.Verbose {
			statusColor := getStatusColor(ww.Status())
			methodColor := "\033[36m"
			reset := "\033[0m"

			fmt.Printf("%s%s%s %s - %s%d%s (%dms)\n",
				methodColor, r.Method, reset,
				r.URL.Path,
				statusColor, ww.Status(), reset,
				duration.Milliseconds())
		}
	})
}

func getStatusColor(status int) string {
	switch {
	case status >= 500:
		return "\033[31m"
	case status >= 400:
		return "\033[33m"
	case status >= 300:
		return "\033[36m"
	default:
		return "\033[32m"
	}
}
