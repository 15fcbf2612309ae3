package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/raisedeck/accesslink/internal/adapter/cache"
	"github.com/raisedeck/accesslink/internal/adapter/provider"
	"github.com/raisedeck/accesslink/internal/config"
	httptransport "github.com/raisedeck/accesslink/internal/http"
	"github.com/raisedeck/accesslink/internal/http/handler"
	"github.com/raisedeck/accesslink/internal/middleware"
	"github.com/raisedeck/accesslink/internal/repository"
	"github.com/raisedeck/accesslink/internal/server"
	accessrec "github.com/raisedeck/accesslink/internal/service/accessrec"
	"github.com/raisedeck/accesslink/internal/service/link"
	"github.com/raisedeck/accesslink/internal/telemetry"
	"github.com/raisedeck/accesslink/migrations"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newAccessRepository,
			newNonceStore,
			newProviderCatalog,
			newProviderClient,
			link.NewService,
			accessrec.NewService,
			handler.NewAccessHandler,
			handler.NewOAuthLinkHandler,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newAccessRepository(pool *pgxpool.Pool, node *snowflake.Node) repository.AccessRepository {
	return repository.NewPostgresAccessRepo(pool, node)
}

// newNonceStore falls back to a noop store when Redis is not configured; the
// nonce audit is best-effort by design.
func newNonceStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.StateNonceStore, error) {
	if cfg.RedisAddr == "" {
		logger.Info("redis not configured; state nonce audit disabled")
		return cacheadapter.NoopNonceStore{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisNonceStore(client), nil
}

func newProviderCatalog(cfg config.Config) map[string]provider.Endpoint {
	return provider.DefaultCatalog(
		provider.Credentials{ClientID: cfg.GitHubClientID, ClientSecret: cfg.GitHubClientSecret, Scope: cfg.GitHubScope},
		provider.Credentials{ClientID: cfg.GitLabClientID, ClientSecret: cfg.GitLabClientSecret, Scope: cfg.GitLabScope},
	)
}

func newProviderClient() provider.Client {
	return provider.NewHTTPClient(nil)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func runMigrations(cfg config.Config, logger *zap.Logger) error {
	return migrations.Up(cfg.DatabaseURL, cfg.MigrationsPath, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
