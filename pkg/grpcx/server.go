package grpcx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
)

// Activate returns ctx with the language and timezone found in its incoming
// metadata activated. A key must carry exactly one value; missing, repeated
// or invalid values leave the store defaults in effect.
func Activate(ctx context.Context, store *ctxs.Store, logger *slog.Logger) context.Context {
	logger = loggerOr(logger)
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	if value, ok := single(ctx, logger, md, KeyLanguage); ok {
		next, err := store.ActivateLanguage(ctx, value)
		if err != nil {
			logger.WarnContext(ctx, "ignoring language metadata", slog.String("value", value), slog.Any("error", err))
		} else {
			ctx = next
		}
	}
	if value, ok := single(ctx, logger, md, KeyTimezone); ok {
		next, err := store.ActivateTimezone(ctx, value)
		if err != nil {
			logger.WarnContext(ctx, "ignoring timezone metadata", slog.String("value", value), slog.Any("error", err))
		} else {
			ctx = next
		}
	}

	return ctx
}

func single(ctx context.Context, logger *slog.Logger, md metadata.MD, key string) (string, bool) {
	values := md.Get(key)
	switch len(values) {
	case 0:
		return "", false
	case 1:
		return values[0], true
	default:
		logger.WarnContext(ctx, "ignoring repeated metadata key", slog.String("key", key), slog.Int("count", len(values)))
		return "", false
	}
}

func UnaryServerInterceptor(store *ctxs.Store, logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = loggerOr(logger)
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(Activate(ctx, store, logger), req)
	}
}

func StreamServerInterceptor(store *ctxs.Store, logger *slog.Logger) grpc.StreamServerInterceptor {
	logger = loggerOr(logger)
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &serverStream{ServerStream: ss, ctx: Activate(ss.Context(), store, logger)})
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}

// RecoveryUnaryInterceptor turns handler panics into codes.Internal.
func RecoveryUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = loggerOr(logger)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "grpc handler panicked", slog.String("method", info.FullMethod), slog.Any("panic", r))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// ServerOptions instruments a server with tracing and activates incoming
// ambient values for every call.
func ServerOptions(store *ctxs.Store, logger *slog.Logger) []grpc.ServerOption {
	logger = loggerOr(logger)
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithPropagators(otelx.Propagator()))),
		grpc.ChainUnaryInterceptor(
			RecoveryUnaryInterceptor(logger),
			UnaryServerInterceptor(store, logger),
		),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(store, logger)),
	}
}
