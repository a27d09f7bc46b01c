package greeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/grpcx"
)

// Server hosts the greeter service and a health endpoint on one grpc.Server.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

type ServerArgs struct {
	Store  *ctxs.Store
	Hello  *hello.App
	Logger *slog.Logger
	// Options are appended to the server options built from Store.
	Options []grpc.ServerOption
}

func NewServer(args ServerArgs) *Server {
	if args.Store == nil {
		panic("greeter: store is required")
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	opts := append(grpcx.ServerOptions(args.Store, args.Logger), args.Options...)
	srv := grpc.NewServer(opts...)
	RegisterGreeterServer(srv, NewService(args.Hello, args.Logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: srv, health: hs, logger: args.Logger}
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.InfoContext(ctx, "greeter server listening", slog.String("addr", lis.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return serveResult(<-serveErr)
	case err := <-serveErr:
		return serveResult(err)
	}
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}
