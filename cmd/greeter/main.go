package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/internal/config"
	"gitlab.com/ucmsv2/ctxprop/internal/greeter"
	"gitlab.com/ucmsv2/ctxprop/pkg/env"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
	"gitlab.com/ucmsv2/ctxprop/pkg/logging"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "Greeter server failed", "error", err)
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

	shutdownOTel, err := otelx.Setup(ctx, otelx.SetupArgs{ServiceName: "ctxprop-greeter", Endpoint: cfg.OTelEndpoint})
	if err != nil {
		return fmt.Errorf("failed to set up OpenTelemetry SDK: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "Failed to shutdown OpenTelemetry SDK", "error", err)
		}
	}()

	store, err := cfg.NewStore()
	if err != nil {
		return fmt.Errorf("failed to build context store: %w", err)
	}
	bundle, err := i18nx.NewBundle(language.Make(store.DefaultLanguage()))
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPCPort, err)
	}

	srv := greeter.NewServer(greeter.ServerArgs{
		Store:  store,
		Hello:  hello.NewApp(hello.Args{Store: store, Bundle: bundle}),
		Logger: logger,
	})
	return srv.Serve(ctx, lis)
}
