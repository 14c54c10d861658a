package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/fittrack/internal/domain/auth"
	"github.com/yanqian/fittrack/internal/domain/exercise"
	"github.com/yanqian/fittrack/internal/infra/config"
	"github.com/yanqian/fittrack/internal/infra/exerciserepo"
	"github.com/yanqian/fittrack/internal/infra/migrations"
	"github.com/yanqian/fittrack/internal/infra/sessionstore"
	"github.com/yanqian/fittrack/internal/infra/userrepo"
)

// userStore is satisfied by both user repositories, which also keep the session registry
// on the user record.
type userStore interface {
	auth.Repository
	auth.SessionStore
}

func provideAuthConfig(cfg *config.Config) (auth.Config, error) {
	accessTTL, err := cfg.Auth.AccessTokenTTL()
	if err != nil {
		return auth.Config{}, fmt.Errorf("access token expiry: %w", err)
	}
	refreshTTL, err := cfg.Auth.RefreshTokenTTL()
	if err != nil {
		return auth.Config{}, fmt.Errorf("refresh token expiry: %w", err)
	}
	return auth.Config{
		AccessSecret:    cfg.Auth.AccessSecret,
		RefreshSecret:   cfg.Auth.RefreshSecret,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		PasswordCost:    cfg.Auth.BcryptCost,
		MaxSessions:     cfg.Auth.MaxSessions,
	}, nil
}

// provideDatabase returns nil when no DSN is configured or the database is unreachable;
// repositories then fall back to memory.
func provideDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		logger.Info("database dsn not set, using memory repositories")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid database dsn, using memory repositories", "error", err)
		return nil
	}
	if cfg.Database.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolConfig.MinConns = cfg.Database.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repositories", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repositories", "error", err)
		pool.Close()
		return nil
	}
	if cfg.Database.Migrate {
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelMigrate()
		if err := migrations.Up(migrateCtx, pool); err != nil {
			logger.Error("database migration failed, using memory repositories", "error", err)
			pool.Close()
			return nil
		}
	}
	logger.Info("postgres repositories enabled")
	return pool
}

func provideUserStore(pool *pgxpool.Pool) userStore {
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	return userrepo.NewPostgresRepository(pool)
}

func provideAuthRepository(store userStore) auth.Repository {
	return store
}

// provideSessionStore keeps sessions on the user record unless Valkey is selected and reachable.
func provideSessionStore(cfg *config.Config, authCfg auth.Config, store userStore, logger *slog.Logger) auth.SessionStore {
	if cfg.SessionStore.Backend != config.SessionBackendValkey {
		return store
	}
	opt, err := buildValkeyOptions(cfg.SessionStore.ValkeyAddr)
	if err != nil {
		logger.Error("invalid valkey configuration, keeping sessions on user records", "error", err)
		return store
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, keeping sessions on user records", "error", err)
		return store
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, keeping sessions on user records", "error", err)
		client.Close()
		return store
	}
	logger.Info("valkey session store enabled", "addr", cfg.SessionStore.ValkeyAddr)
	return sessionstore.NewValkeyStore(client, cfg.SessionStore.Prefix, authCfg.RefreshTokenTTL)
}

func provideExerciseRepository(pool *pgxpool.Pool) exercise.Repository {
	if pool == nil {
		return exerciserepo.NewMemoryRepository()
	}
	return exerciserepo.NewPostgresRepository(pool)
}

// Session lookups always hit the server, so client-side caching stays off.
func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	opt.DisableCache = true
	return opt, nil
}
