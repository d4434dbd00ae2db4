// Package gateway provides the public API for embedding the gateway in
// another program. cmd/gateway is a thin wrapper over this package.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/relaygate/relaygate/internal/audit"
	"github.com/relaygate/relaygate/internal/auth"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/hooks"
	"github.com/relaygate/relaygate/internal/registration"
	"github.com/relaygate/relaygate/internal/router"
	"github.com/relaygate/relaygate/internal/server"
	"github.com/relaygate/relaygate/internal/storage"
	"github.com/relaygate/relaygate/internal/storage/memory"
	"github.com/relaygate/relaygate/internal/storage/sqlite"
	"github.com/relaygate/relaygate/internal/telemetry"
)

// Hook is re-exported so embedders can register custom post-processing
// without importing internal packages.
type Hook = hooks.Hook

// HookFunc adapts a function to the Hook interface.
type HookFunc = hooks.Func

type options struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.InteractionStore
	storeSet   bool
	sqlitePath string
	extraHooks []Hook
	noTracing  bool
}

// Option configures a Gateway.
type Option func(*options)

// WithFileConfig loads configuration from the YAML file at path.
func WithFileConfig(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithConfig uses an already-built configuration, bypassing file loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSQLite stores audit interactions in the SQLite database at path,
// overriding the config's storage block.
func WithSQLite(path string) Option {
	return func(o *options) {
		o.sqlitePath = path
		o.storeSet = true
	}
}

// WithStore uses a caller-provided interaction store. Pass nil to disable
// auditing regardless of config.
func WithStore(store storage.InteractionStore) Option {
	return func(o *options) {
		o.store = store
		o.storeSet = true
	}
}

// WithHooks appends post-processing hooks after the config-defined webhooks.
func WithHooks(hs ...Hook) Option {
	return func(o *options) { o.extraHooks = append(o.extraHooks, hs...) }
}

// WithoutTracing disables the OpenTelemetry trace exporter.
func WithoutTracing() Option {
	return func(o *options) { o.noTracing = true }
}

// Gateway is an assembled, runnable instance.
type Gateway struct {
	srv      *server.Server
	router   *router.Router
	store    storage.InteractionStore
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// New assembles a gateway from the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithSQLite("./relaygate.db"),
//	)
func New(opts ...Option) (*Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	registration.RegisterBuiltins()

	cfg := o.cfg
	if cfg == nil {
		path := o.configPath
		if path == "" {
			path = "config.yaml"
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	gw := &Gateway{logger: o.logger}

	if !o.noTracing {
		shutdown, err := telemetry.InitTracer("relaygate", o.logger)
		if err != nil {
			o.logger.Warn("tracing disabled", "error", err)
		} else {
			gw.shutdown = shutdown
		}
	}

	store, err := resolveStore(o, cfg, o.logger)
	if err != nil {
		return nil, err
	}
	gw.store = store

	pipeline, err := hooks.FromConfig(cfg.Hooks, o.logger)
	if err != nil {
		return nil, err
	}
	for _, h := range o.extraHooks {
		pipeline.Append(h)
	}

	rt, err := router.New(cfg, pipeline, audit.NewRecorder(store, o.logger), o.logger)
	if err != nil {
		return nil, err
	}
	gw.router = rt

	handler := server.NewHandler(rt, cfg.Models, o.logger)
	gw.srv = server.New(cfg.Server.Port, o.logger, auth.New(cfg.Auth), handler)

	return gw, nil
}

func resolveStore(o options, cfg *config.Config, logger *slog.Logger) (storage.InteractionStore, error) {
	if o.storeSet {
		if o.sqlitePath != "" {
			logger.Info("audit storage enabled", "path", o.sqlitePath)
			return sqlite.New(o.sqlitePath)
		}
		return o.store, nil
	}

	switch cfg.Storage.Type {
	case "sqlite":
		path := cfg.Storage.SQLite.Path
		if path == "" {
			path = "relaygate.db"
		}
		logger.Info("audit storage enabled", "path", path)
		return sqlite.New(path)
	case "memory":
		return memory.New(), nil
	case "", "none":
		logger.Info("audit storage disabled")
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

// Run starts the HTTP server and blocks until it exits.
func (g *Gateway) Run() error {
	return g.srv.Start()
}

// Handler exposes the assembled HTTP handler for embedding in an existing
// server or mux.
func (g *Gateway) Handler() http.Handler {
	return g.srv.Router
}

// Close releases the trace exporter and audit store.
func (g *Gateway) Close(ctx context.Context) error {
	if g.shutdown != nil {
		if err := g.shutdown(ctx); err != nil {
			g.logger.Warn("trace shutdown failed", "error", err)
		}
	}
	if g.store != nil {
		return g.store.Close()
	}
	return nil
}
