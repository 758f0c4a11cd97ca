// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/inbox/internal/api"
	"github.com/starford/inbox/internal/catalog"
	"github.com/starford/inbox/internal/export"
	"github.com/starford/inbox/internal/mcpserver"
	"github.com/starford/inbox/internal/noteservice"
	"github.com/starford/inbox/internal/sse"
	"github.com/starford/inbox/internal/storage"
	"github.com/starford/inbox/internal/store"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return newLogger(a.logOut, a.config.App.LogLevel)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens the database and, when configured, brings the tag catalog
// in line with its file. A broken catalog file is logged, not fatal.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if cfg.Catalog.Enabled() {
		if _, err := catalog.Sync(ctx, store.NewCatalogSeeder(db), cfg.Catalog.Path, logger); err != nil {
			logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
		}
	}
	return db, nil
}

// NewHandler builds the full HTTP handler: health checks plus the inbox API
// under /inbox.
func NewHandler(cfg *Config, db store.Backend, svc *noteservice.Service, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/inbox", api.NewRouter(svc, api.Options{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
		Events:      events,
	}))
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.Bool("auth", cfg.Auth.AuthEnabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(cfg.Events.TagsThrottle)
	defer broker.Close()

	svc := noteservice.NewService(db, broker)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHandler(cfg, db, svc, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Catalog.Watch {
		g.Go(func() error {
			err := catalog.Watch(gCtx, store.NewCatalogSeeder(db), cfg.Catalog.Path, logger, broker.CatalogChanged)
			if err != nil {
				logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Open event streams would otherwise hold Shutdown until its timeout.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the catalog watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the inbox over MCP on stdin/stdout. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	db, err := openStore(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := mcpserver.New(noteservice.NewService(db, nil), logger)
	logger.Info("MCP server starting on stdio", slog.String("sqlite_path", app.config.SQLite.Path))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// Seed syncs the catalog file once and exits.
func Seed(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if !cfg.Catalog.Enabled() {
		return fmt.Errorf("seed: catalog.path is not configured")
	}
	logger := app.logger()

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	applied, err := catalog.Sync(ctx, store.NewCatalogSeeder(db), cfg.Catalog.Path, logger)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if !applied {
		logger.Info("seed: catalog already up to date")
	}
	return nil
}

// Export writes every note as Markdown under dir, creating it if needed.
func Export(ctx context.Context, dir string, opts ...Option) (export.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return export.Result{}, err
	}
	logger := app.logger()

	dst, err := storage.NewFS(dir)
	if err != nil {
		return export.Result{}, fmt.Errorf("init export dir: %w", err)
	}

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return export.Result{}, fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	return export.Export(ctx, store.NewNoteStore(db), store.NewCommentStore(db), dst, logger)
}
