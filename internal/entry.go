// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mdboard/internal/api"
	"github.com/starford/mdboard/internal/index"
	"github.com/starford/mdboard/internal/mcpserver"
	"github.com/starford/mdboard/internal/sse"
	"github.com/starford/mdboard/internal/storage"
	"github.com/starford/mdboard/internal/taskservice"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// OpenWorkspace creates the workspace directory if needed and returns its store.
func OpenWorkspace(cfg *Config) (*storage.FS, error) {
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// NewTaskService builds a service over the configured workspace without an
// index. The CLI uses it for one-shot edits.
func NewTaskService(cfg *Config, logger *slog.Logger) (*taskservice.Service, error) {
	store, err := OpenWorkspace(cfg)
	if err != nil {
		return nil, err
	}
	return taskservice.New(store, cfg.Kanban.Board(), taskservice.WithLogger(logger)), nil
}

// openIndexed opens the workspace and SQLite index and brings the index up
// to date. The caller closes the returned DB.
func openIndexed(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...taskservice.Option) (*storage.FS, *index.DB, *taskservice.Service, error) {
	store, err := OpenWorkspace(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	opts = append([]taskservice.Option{taskservice.WithLogger(logger), taskservice.WithIndex(db)}, opts...)
	svc := taskservice.New(store, cfg.Kanban.Board(), opts...)

	if err := index.Sync(ctx, db, store, logger, svc.ParseOptions()...); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, svc, nil
}

// Run starts the HTTP server, the workspace watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.App.SSE.BoardThrottle)
	defer broker.Close()

	store, db, svc, err := openIndexed(ctx, cfg, logger, taskservice.WithNotifier(broker.PublishTaskEvent))
	if err != nil {
		return err
	}
	defer db.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, db, store, store.Root(), logger, broker.PublishDocumentEvent, svc.ParseOptions()...)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
		var err error
		if app.listener != nil {
			err = httpServer.Serve(app.listener)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

// errShutdown cancels the group's context so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RunMCP serves the MCP tools over stdin/stdout until stdin closes. The
// index is kept current by a watcher for the lifetime of the session.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append(opts, withStderrDefault()))
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, db, svc, err := openIndexed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := index.Watch(ctx, db, store, store.Root(), logger, nil, svc.ParseOptions()...); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	err = mcpserver.New(svc).ServeStdio()
	cancel()
	<-watchDone
	return err
}

// withStderrDefault installs a stderr JSON logger unless one was supplied.
func withStderrDefault() Option {
	return func(a *application) {
		if a.logger == nil && a.config != nil {
			a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: a.config.App.LogLevel,
			}))
		}
	}
}
