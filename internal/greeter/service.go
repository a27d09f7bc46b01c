// Package greeter is a small gRPC service that renders the hello greeting in
// the language and timezone received in the call metadata, together with its
// client.
package greeter

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
)

var logger = otelslog.NewLogger("ctxprop/internal/greeter")

// Service implements GreeterServer on top of the hello application.
type Service struct {
	hello  *hello.App
	logger *slog.Logger
}

func NewService(app *hello.App, l *slog.Logger) *Service {
	if app == nil {
		panic("greeter: hello app is required")
	}
	if l == nil {
		l = logger
	}
	return &Service{hello: app, logger: l}
}

func (s *Service) SayHello(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	g, err := s.hello.Render(ctx, req.GetValue())
	if err != nil {
		return nil, s.status(ctx, err)
	}
	return wrapperspb.String(g.Text()), nil
}

// status converts err to a gRPC status whose message is localized in the
// ambient language of ctx.
func (s *Service) status(ctx context.Context, err error) error {
	var i18nErr *errorx.I18nError
	if !errors.As(err, &i18nErr) {
		s.logger.ErrorContext(ctx, "greeter call failed", slog.Any("error", err))
		return status.Error(codes.Internal, errorx.NewInternalError().Localize(s.hello.Localizer(ctx)))
	}

	msg := i18nErr.Localize(s.hello.Localizer(ctx))
	switch i18nErr.Code {
	case errorx.CodeInvalid, errorx.CodeInvalidIdentifier, errorx.CodeValidationFailed:
		return status.Error(codes.InvalidArgument, msg)
	case errorx.CodeNotFound:
		return status.Error(codes.NotFound, msg)
	case errorx.CodeServiceUnavailable:
		return status.Error(codes.Unavailable, msg)
	default:
		s.logger.ErrorContext(ctx, "greeter call failed", slog.Any("error", err))
		return status.Error(codes.Internal, msg)
	}
}
