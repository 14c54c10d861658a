package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/fittrack/internal/infra/config"
)

const defaultShutdownTimeout = 10 * time.Second

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	pool   *pgxpool.Pool
}

// NewApp is used by Wire to build the runnable app. pool may be nil when running on
// memory repositories.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, pool *pgxpool.Pool) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, pool: pool}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.closePool()
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address, "env", a.cfg.App.Env)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) closePool() {
	if a.pool != nil {
		a.pool.Close()
	}
}
