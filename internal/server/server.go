package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/blob"
	"github.com/jackzampolin/spellbook/internal/config"
	"github.com/jackzampolin/spellbook/internal/defra"
	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/docstore/filestore"
	"github.com/jackzampolin/spellbook/internal/docstore/sqlitestore"
	"github.com/jackzampolin/spellbook/internal/editor"
	"github.com/jackzampolin/spellbook/internal/handoff"
	"github.com/jackzampolin/spellbook/internal/home"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/metrics"
	"github.com/jackzampolin/spellbook/internal/schema"
	"github.com/jackzampolin/spellbook/internal/seed"
	"github.com/jackzampolin/spellbook/internal/server/endpoints"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/settings"
	"github.com/jackzampolin/spellbook/internal/svcctx"
	"github.com/jackzampolin/spellbook/version"
)

// sessionSweepInterval is how often idle sessions are looked for.
const sessionSweepInterval = time.Minute

// Server is the main Spellbook HTTP server.
// It opens the configured document store, imports seed data and serves the
// API. With the defra backend it also manages the DefraDB container, starting
// it on server start and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	defraManager *defra.DockerManager
	configMgr    *config.Manager
	home         *home.Dir
	backend      string
	logger       *slog.Logger
	metrics      *metrics.Recorder

	// overrides used instead of the configured store and seed source
	store docstore.Store
	seed  seed.Source

	// services holds the services for context enrichment. Until the seed
	// import finished it carries no store.
	services atomic.Pointer[svcctx.Services]
	swapMu   sync.Mutex

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config)
	Port string
	// Backend overrides store.backend from config.
	Backend string
	// Home is the spellbook home directory (default: ~/.spellbook)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Without one the defaults are used.
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Store replaces the configured backend. The server closes it on shutdown.
	Store docstore.Store
	// Seed replaces the configured seed source.
	Seed seed.Source
	// DefraLabels are added to a DefraDB container the server creates.
	DefraLabels map[string]string
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}
	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, err
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
		metrics:   metrics.NewRecorder(),
		store:     cfg.Store,
		seed:      cfg.Seed,
	}

	c := s.config()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Host == "" {
		cfg.Host = c.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = c.Server.Port
	}
	s.backend = c.Store.Backend
	if cfg.Backend != "" {
		s.backend = cfg.Backend
	}

	if s.backend == config.BackendDefra && s.store == nil {
		if err := os.MkdirAll(cfg.Home.DefraPath(), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create defra data directory: %w", err)
		}
		dm, err := defra.NewDockerManager(defra.DockerConfig{
			ContainerName: c.Defra.ContainerName,
			HomePath:      cfg.Home.Path(),
			Image:         c.Defra.Image,
			DataPath:      cfg.Home.DefraPath(),
			HostPort:      c.Defra.Port,
			ReadyTimeout:  c.Defra.ReadyTimeout,
			Labels:        cfg.DefraLabels,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create defra manager: %w", err)
		}
		s.defraManager = dm
	}

	blobs, err := blob.New(cfg.Home.DataPath())
	if err != nil {
		return nil, err
	}

	// Services that work without a store are available from the start, so
	// health checks and the hand-off answer while the import runs.
	s.services.Store(&svcctx.Services{
		Blobs:   blobs,
		Handoff: newHandoff(c, s.logger),
		Metrics: s.metrics,
		Logger:  s.logger,
		Home:    cfg.Home,
	})

	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.swap(func(svcs *svcctx.Services) {
				svcs.Handoff = newHandoff(c, s.logger)
			})
			s.logger.Info("handoff client reloaded from config")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = endpoints.NewRegistry(endpoints.Config{
		Backend:      s.backend,
		DefraManager: s.defraManager,
	})

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(s.metrics.Middleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// config returns the current configuration, or the defaults without a manager.
func (s *Server) config() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

func newHandoff(c *config.Config, logger *slog.Logger) *handoff.Client {
	return handoff.New(handoff.Config{
		AppURL:     c.Handoff.AppURL,
		StoreURL:   c.Handoff.StoreURL,
		PromptPath: config.ResolveEnvVars(c.Handoff.PromptPath),
		Timeout:    c.Handoff.Timeout,
		UserAgent:  handoff.DefaultUserAgent,
		Logger:     logger,
	})
}

// swap replaces the services with a modified copy.
func (s *Server) swap(fn func(*svcctx.Services)) {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	next := *s.services.Load()
	fn(&next)
	s.services.Store(&next)
}

// Start starts the HTTP server, opens the store and imports seed data.
// It blocks until the context is cancelled or an error occurs. A failed
// import stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if err := s.initialize(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	go s.sweepSessions(ctx)

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initialize opens the store, builds the services over it and runs the seed
// import. The services are published only after the import succeeded.
func (s *Server) initialize(ctx context.Context) error {
	c := s.config()

	store, err := s.openStore(ctx, c)
	if err != nil {
		return err
	}

	lib, err := library.New(library.Config{
		Store:        store,
		Logger:       s.logger,
		TagCacheSize: c.Cache.TagCacheSize,
		TagCacheTTL:  c.Cache.TagCacheTTL,
	})
	if err != nil {
		_ = store.Close()
		return err
	}

	source := s.seed
	if source == nil {
		source = seedSource(c, s.home)
	}
	importer, err := seed.NewImporter(seed.Config{
		Store:   store,
		Source:  source,
		Logger:  s.logger,
		OnWrite: lib.InvalidateTags,
	})
	if err != nil {
		_ = store.Close()
		return err
	}

	s.logger.Info("importing seed data", "source", source.String())
	result, err := importer.Run(ctx)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("seed import failed: %w", err)
	}
	s.metrics.Import(string(result.Mode))
	s.logger.Info("seed import finished",
		"mode", result.Mode,
		"version", result.Version,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)

	s.swap(func(svcs *svcctx.Services) {
		svcs.Store = store
		svcs.Library = lib
		svcs.Sessions = session.NewManager(lib, s.logger)
		svcs.Editor = editor.New(lib, s.logger)
		svcs.Importer = importer
		svcs.Settings = settings.New(store, s.logger)
	})
	s.logger.Info("server ready", "backend", s.backend, "version", version.GitRelease)
	return nil
}

// openStore opens the document store for the selected backend.
func (s *Server) openStore(ctx context.Context, c *config.Config) (docstore.Store, error) {
	if s.store != nil {
		return s.store, nil
	}

	switch s.backend {
	case config.BackendMemory:
		return docstore.NewMemory(), nil

	case config.BackendFile:
		dir := c.Store.Path
		if dir == "" {
			dir = s.home.StorePath()
		}
		s.logger.Info("opening file store", "path", dir)
		return filestore.Open(dir)

	case config.BackendSQLite:
		path := c.Store.Path
		if path == "" {
			path = s.home.SQLitePath()
		}
		s.logger.Info("opening sqlite store", "path", path)
		return sqlitestore.Open(path)

	case config.BackendDefra:
		s.logger.Info("starting DefraDB", "container", s.defraManager.ContainerName())
		if err := s.defraManager.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start DefraDB: %w", err)
		}

		client := defra.NewClient(s.defraManager.URL())
		if err := client.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("DefraDB health check failed: %w", err)
		}
		s.logger.Info("DefraDB is ready", "url", s.defraManager.URL())

		s.logger.Info("initializing schemas")
		store, err := schema.Open(ctx, client, s.logger)
		if err != nil {
			return nil, fmt.Errorf("schema initialization failed: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", s.backend)
}

// seedSource picks where first-run data comes from. A configured URL is used
// as is; otherwise a seed file is read when present and the built-in seed
// when not.
func seedSource(c *config.Config, h *home.Dir) seed.Source {
	if c.Seed.URL != "" {
		return seed.HTTPSource{
			URL:      c.Seed.URL,
			Client:   &http.Client{Timeout: c.Seed.Timeout},
			Attempts: c.Seed.Retries,
		}
	}
	path := c.Seed.Path
	if path == "" {
		path = h.SeedPath()
	}
	return seed.Fallback{
		Primary:   seed.FileSource{Path: path},
		Secondary: seed.EmbeddedSource{},
	}
}

// sweepSessions ends idle sessions until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.config().Session.IdleTimeout
			sessions := s.services.Load().Sessions
			if idle <= 0 || sessions == nil {
				continue
			}
			sessions.EvictIdle(idle)
		}
	}
}

// shutdown performs graceful shutdown of the HTTP server, the store and DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if store := s.services.Load().Store; store != nil {
		if err := store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	if s.defraManager != nil {
		s.logger.Info("stopping DefraDB")
		if err := s.defraManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
		if err := s.defraManager.Close(); err != nil {
			s.logger.Error("DefraDB manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// IsReady returns whether the seed import finished and the API is served.
func (s *Server) IsReady() bool {
	return s.services.Load().Store != nil
}

// Services returns the current services. Store is nil until the server is ready.
func (s *Server) Services() *svcctx.Services {
	return s.services.Load()
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services.Load())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the seed import finished.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.IsReady() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
