package main

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

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"google.golang.org/grpc"

	ctxprop "gitlab.com/ucmsv2/ctxprop"
	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/internal/config"
	"gitlab.com/ucmsv2/ctxprop/internal/greeter"
	httpport "gitlab.com/ucmsv2/ctxprop/internal/ports/http"
	watermillport "gitlab.com/ucmsv2/ctxprop/internal/ports/watermill"
	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/env"
	"gitlab.com/ucmsv2/ctxprop/pkg/grpcx"
	"gitlab.com/ucmsv2/ctxprop/pkg/httpx"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
	"gitlab.com/ucmsv2/ctxprop/pkg/logging"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
	pgpkg "gitlab.com/ucmsv2/ctxprop/pkg/postgres"
	"gitlab.com/ucmsv2/ctxprop/pkg/taskx"
	"gitlab.com/ucmsv2/ctxprop/pkg/watermillx"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "API server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	env.SetMode(cfg.Mode)
	logger, cleanup := logging.Setup(cfg.Mode)
	defer cleanup()
	slog.SetDefault(logger)

	shutdownOTel, err := otelx.Setup(ctx, otelx.SetupArgs{ServiceName: "ctxprop-api", Endpoint: cfg.OTelEndpoint})
	if err != nil {
		return fmt.Errorf("failed to set up OpenTelemetry SDK: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "Failed to shutdown OpenTelemetry SDK", "error", err)
		}
	}()

	slog.InfoContext(ctx, "Starting API server",
		"mode", cfg.Mode,
		"port", cfg.Port,
		"broker", cfg.Broker,
		"results", cfg.ResultBackend(),
	)

	store, err := cfg.NewStore()
	if err != nil {
		return fmt.Errorf("failed to build context store: %w", err)
	}
	bundle, err := i18nx.NewBundle(language.Make(store.DefaultLanguage()))
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}

	wlogger := watermillx.NewSlogLogger(logger, slog.LevelInfo)
	b, err := setupBroker(ctx, cfg, wlogger)
	if err != nil {
		return err
	}
	defer b.Close()

	results, closeResults, err := setupResults(cfg, b.pool)
	if err != nil {
		return err
	}
	defer closeResults()

	tasks := taskx.NewApp(taskx.Args{
		Store:     store,
		Publisher: b.publisher,
		Results:   results,
		Topic:     cfg.TaskTopic,
	})
	helloApp := hello.NewApp(hello.Args{
		Store:  store,
		Bundle: bundle,
		Tasks:  tasks,
	})

	router, err := watermillx.NewRouter(wlogger)
	if err != nil {
		return fmt.Errorf("failed to create watermill router: %w", err)
	}
	wmport, err := watermillport.NewPort(router, b.subscriber)
	if err != nil {
		return fmt.Errorf("failed to create watermill port: %w", err)
	}
	if err := wmport.Run(ctx, watermillport.AppTaskHandlers{Tasks: tasks}); err != nil {
		return fmt.Errorf("failed to run watermill port: %w", err)
	}

	conn, err := greeter.Dial(cfg.GRPCAddr, grpcx.NewChain(grpcx.ChainArgs{
		Contributors: grpcx.DefaultContributors(store),
	}))
	if err != nil {
		return fmt.Errorf("failed to create greeter client: %w", err)
	}
	defer conn.Close()

	httpServer := setupHTTPServer(cfg, store, helloApp, bundle, conn)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := router.Run(gctx); err != nil {
			return fmt.Errorf("task router: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.InfoContext(gctx, "Starting HTTP server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(gctx, "Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), router.Close())
	})

	err = g.Wait()
	slog.InfoContext(ctx, "Server exited")
	return err
}

type broker struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	pool       *pgxpool.Pool
}

func (b *broker) Close() {
	if err := b.publisher.Close(); err != nil {
		slog.Error("Failed to close task publisher", "error", err)
	}
	if b.pool == nil {
		// The gochannel pub/sub is both ends.
		return
	}
	if err := b.subscriber.Close(); err != nil {
		slog.Error("Failed to close task subscriber", "error", err)
	}
	b.pool.Close()
}

func setupBroker(ctx context.Context, cfg *config.Config, wlogger watermill.LoggerAdapter) (*broker, error) {
	if cfg.Broker != config.BrokerPostgres {
		pubSub := watermillx.NewGoChannel(wlogger)
		return &broker{publisher: pubSub, subscriber: pubSub}, nil
	}

	pool, err := pgpkg.NewPgxPool(ctx, cfg.PgDSN, cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pgpkg.Migrate(pgpkg.MigrateDSN(cfg.PgDSN), ctxprop.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := watermillx.InitializeSchema(ctx, pool, wlogger, cfg.TaskTopic); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize task schema: %w", err)
	}

	publisher, err := watermillx.NewSQLPublisher(pool, wlogger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create task publisher: %w", err)
	}
	subscriber, err := watermillx.NewSQLSubscriber(pool, watermillx.SQLSubscriberArgs{}, wlogger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create task subscriber: %w", err)
	}

	return &broker{publisher: publisher, subscriber: subscriber, pool: pool}, nil
}

func setupResults(cfg *config.Config, pool *pgxpool.Pool) (taskx.ResultBackend, func(), error) {
	switch cfg.ResultBackend() {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Error("Failed to close redis client", "error", err)
			}
		}
		return taskx.NewRedisBackend(taskx.RedisBackendArgs{Client: client, TTL: cfg.ResultTTL}), closeFn, nil
	case "postgres":
		if pool == nil {
			return nil, nil, errors.New("postgres result backend requires the postgres broker")
		}
		return taskx.NewPostgresBackend(taskx.PostgresBackendArgs{Pool: pool, TTL: cfg.ResultTTL}), func() {}, nil
	default:
		return taskx.NewMemoryBackend(taskx.MemoryBackendArgs{TTL: cfg.ResultTTL}), func() {}, nil
	}
}

func setupHTTPServer(cfg *config.Config, store *ctxs.Store, app *hello.App, bundle *i18n.Bundle, conn grpc.ClientConnInterface) *http.Server {
	router := chi.NewRouter()

	httpPort := httpport.NewPort(httpport.Args{
		Store:    store,
		HelloApp: app,
		Greeter:  greeter.NewClient(conn),
		Errhandler: httpx.NewErrorHandler(httpx.ErrorHandlerArgs{
			Bundle: bundle,
			Store:  store,
		}),
	})
	httpPort.Route(router)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
