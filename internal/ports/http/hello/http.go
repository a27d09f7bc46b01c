package hellohttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"gitlab.com/ucmsv2/ctxprop/internal/application/hello"
	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/httpx"
	"gitlab.com/ucmsv2/ctxprop/pkg/taskx"
)

var (
	tracer = otel.Tracer("ctxprop/internal/ports/http/hello")
	logger = otelslog.NewLogger("ctxprop/internal/ports/http/hello")
)

const defaultTaskTimeout = 10 * time.Second

// Greeter is the remote greeting service.
type Greeter interface {
	SayHello(ctx context.Context, username string, opts ...grpc.CallOption) (string, error)
}

type HTTP struct {
	tracer      trace.Tracer
	logger      *slog.Logger
	app         *hello.App
	greeter     Greeter
	errhandler  *httpx.ErrorHandler
	taskTimeout time.Duration
}

type Args struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	App        *hello.App
	Greeter    Greeter
	Errhandler *httpx.ErrorHandler
	// TaskTimeout bounds the wait for a queued task result.
	TaskTimeout time.Duration
}

func NewHTTP(args Args) *HTTP {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.TaskTimeout <= 0 {
		args.TaskTimeout = defaultTaskTimeout
	}

	return &HTTP{
		tracer:      args.Tracer,
		logger:      args.Logger,
		app:         args.App,
		greeter:     args.Greeter,
		errhandler:  args.Errhandler,
		taskTimeout: args.TaskTimeout,
	}
}

func (h *HTTP) Route(r chi.Router) {
	r.Get("/hello/{username}/", h.Hello)
	r.Get("/hello-with-grpc/{username}/", h.HelloWithGRPC)
	r.Get("/hello-with-task-apply/{username}/", h.HelloWithTaskApply)
	r.Get("/hello-with-task-apply-async/{username}/", h.HelloWithTaskApplyAsync)
}

func (h *HTTP) Hello(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Hello")
	defer span.End()

	g, err := h.app.Render(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to render greeting")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{
		"greeting": g,
		"message":  g.Text(),
	})
}

func (h *HTTP) HelloWithGRPC(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HelloWithGRPC")
	defer span.End()

	if h.greeter == nil {
		h.errhandler.HandleError(w, r, span, errorx.NewServiceUnavailable(), "greeter client is not configured")
		return
	}

	text, err := h.greeter.SayHello(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "greeter call failed")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"message": text})
}

func (h *HTTP) HelloWithTaskApply(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HelloWithTaskApply")
	defer span.End()

	text, err := h.app.ApplyTask(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "hello task failed")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"message": text})
}

func (h *HTTP) HelloWithTaskApplyAsync(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HelloWithTaskApplyAsync")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	text, err := h.app.ApplyTaskAsync(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.errhandler.HandleError(w, r, span, taskError(err), "queued hello task failed")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"message": text})
}

// taskError describes a failure reported by a worker. Its detail stays in the
// logs: the worker's message is not localized.
func taskError(err error) error {
	var taskErr *taskx.TaskError
	if errors.As(err, &taskErr) {
		return errorx.NewTaskFailed(taskErr.Task).WithCause(err)
	}
	return err
}
