package taskx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
)

var (
	tracer = otel.Tracer("ctxprop/pkg/taskx")
	logger = otelslog.NewLogger("ctxprop/pkg/taskx")
	meter  = otel.Meter("ctxprop/pkg/taskx")
)

const (
	DefaultTopic = "tasks"
	// MetadataTask is the message metadata key holding the task name.
	MetadataTask = "task"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrNoPublisher = errors.New("no publisher configured")
	ErrTaskPanic   = errors.New("task panicked")
)

// Mode selects how Submit runs a task.
type Mode int

const (
	// ModeImmediate runs the task in the calling goroutine.
	ModeImmediate Mode = iota
	// ModeQueued publishes the task to the broker for a worker to run.
	ModeQueued
)

func (m Mode) String() string {
	switch m {
	case ModeImmediate:
		return "immediate"
	case ModeQueued:
		return "queued"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// App is a task registry bound to a broker publisher and a result backend.
type App struct {
	store      *ctxs.Store
	publisher  message.Publisher
	results    ResultBackend
	topic      string
	tracer     trace.Tracer
	logger     *slog.Logger
	executions metric.Int64Counter

	mu    sync.RWMutex
	tasks map[string]*Task
}

type Args struct {
	Store *ctxs.Store
	// Publisher is required for ModeQueued only.
	Publisher message.Publisher
	Results   ResultBackend
	Topic     string
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Meter     metric.Meter
}

func NewApp(args Args) *App {
	if args.Store == nil {
		panic("taskx: store is required")
	}
	if args.Results == nil {
		args.Results = NewMemoryBackend(MemoryBackendArgs{})
	}
	if args.Topic == "" {
		args.Topic = DefaultTopic
	}
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.Meter == nil {
		args.Meter = meter
	}

	executions, err := args.Meter.Int64Counter(
		"taskx.executions",
		metric.WithDescription("Number of task executions by task and outcome."),
	)
	if err != nil {
		args.Logger.Warn("failed to create executions counter", slog.Any("error", err))
		executions = noop.Int64Counter{}
	}

	return &App{
		store:      args.Store,
		publisher:  args.Publisher,
		results:    args.Results,
		topic:      args.Topic,
		tracer:     args.Tracer,
		logger:     args.Logger,
		executions: executions,
		tasks:      make(map[string]*Task),
	}
}

func (a *App) Topic() string {
	return a.topic
}

// Register wraps fn and makes it available to Submit and to the worker
// handler under name. Registering a name twice panics.
func (a *App) Register(name string, fn Func) *Task {
	if name == "" {
		panic("taskx: task name is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.tasks[name]; ok {
		panic(fmt.Sprintf("taskx: task %q already registered", name))
	}
	task := &Task{name: name, app: a, wrapped: Wrap(a.store, fn)}
	a.tasks[name] = task
	return task
}

func (a *App) Lookup(name string) (*Task, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	task, ok := a.tasks[name]
	return task, ok
}

// Handler consumes task messages published by Submit. Messages that cannot
// be run (unknown task, broken payload) get a failure result and are acked;
// only a result that cannot be stored nacks the message.
func (a *App) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		const op = "taskx.App.Handler"

		ctx := otelx.Extract(msg.Context(), msg.Metadata)
		name := msg.Metadata.Get(MetadataTask)

		var result Result
		task, ok := a.Lookup(name)
		if !ok {
			err := fmt.Errorf("%w: %q", ErrUnknownTask, name)
			a.logger.ErrorContext(ctx, "dropping task message", slog.String("task.id", msg.UUID), slog.Any("error", err))
			result = failureResult(msg.UUID, name, err)
		} else {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				a.logger.ErrorContext(ctx, "failed to decode task payload", slog.String("task", name), slog.String("task.id", msg.UUID), slog.Any("error", err))
				result = failureResult(msg.UUID, name, fmt.Errorf("decode payload: %w", err))
			} else {
				value, err := task.run(ctx, msg.UUID, env, trace.SpanKindConsumer)
				if err != nil {
					result = failureResult(msg.UUID, name, err)
				} else {
					result = successResult(msg.UUID, name, value)
				}
			}
		}

		if err := a.results.Store(ctx, result); err != nil {
			return fmt.Errorf("%s: store result: %w", op, err)
		}
		return nil
	}
}

// Task is a registered, wrapped task.
type Task struct {
	name    string
	app     *App
	wrapped *Wrapped
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Wrapped() *Wrapped {
	return t.wrapped
}

// Submit injects the ambient language and timezone of ctx into env and runs
// or enqueues the task. The returned error reports submission problems only;
// the task's own outcome is read from the AsyncResult.
func (t *Task) Submit(ctx context.Context, env Envelope, mode Mode) (*AsyncResult, error) {
	const op = "taskx.Task.Submit"

	if ctx == nil {
		ctx = context.Background()
	}
	env = Envelope{Args: env.Args, Kwargs: t.wrapped.Inject(ctx, env.Kwargs)}
	id := uuid.NewString()

	switch mode {
	case ModeImmediate:
		value, err := t.run(ctx, id, env, trace.SpanKindInternal)
		return readyResult(id, t.name, value, err), nil
	case ModeQueued:
		if err := t.publish(ctx, id, env); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &AsyncResult{ID: id, Task: t.name, backend: t.app.results}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported mode %s", op, mode)
	}
}

// Apply runs the task synchronously in the calling goroutine.
func (t *Task) Apply(ctx context.Context, args []any, kwargs map[string]any) (*AsyncResult, error) {
	return t.Submit(ctx, Envelope{Args: args, Kwargs: kwargs}, ModeImmediate)
}

// ApplyAsync enqueues the task for a worker.
func (t *Task) ApplyAsync(ctx context.Context, args []any, kwargs map[string]any) (*AsyncResult, error) {
	return t.Submit(ctx, Envelope{Args: args, Kwargs: kwargs}, ModeQueued)
}

func (t *Task) publish(ctx context.Context, id string, env Envelope) error {
	if t.app.publisher == nil {
		return ErrNoPublisher
	}

	ctx, span := t.app.tracer.Start(ctx, "taskx.publish "+t.name,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("task.name", t.name),
			attribute.String("task.id", id),
			attribute.String("messaging.destination.name", t.app.topic),
		),
	)
	defer span.End()

	payload, err := json.Marshal(env)
	if err != nil {
		otelx.RecordSpanError(span, err, "encode task payload")
		return fmt.Errorf("encode payload: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataTask, t.name)
	otelx.Propagate(ctx, msg.Metadata)
	msg.SetContext(ctx)

	if err := t.app.publisher.Publish(t.app.topic, msg); err != nil {
		otelx.RecordSpanError(span, err, "publish task")
		return fmt.Errorf("publish to %s: %w", t.app.topic, err)
	}

	t.app.logger.DebugContext(ctx, "task published", slog.String("task", t.name), slog.String("task.id", id))
	return nil
}

func (t *Task) run(ctx context.Context, id string, env Envelope, kind trace.SpanKind) (value any, err error) {
	ctx, span := t.app.tracer.Start(ctx, "taskx.run "+t.name, trace.WithSpanKind(kind))
	otelx.SetSpanAttrs(span, map[string]any{
		"task.name":     t.name,
		"task.id":       id,
		"task.language": env.Kwargs[KwargLanguage],
		"task.timezone": env.Kwargs[KwargTimezone],
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			value = nil
		}

		outcome := "success"
		if err != nil {
			outcome = "failure"
			otelx.RecordSpanError(span, err, "task failed")
			t.app.logger.WarnContext(ctx, "task failed", slog.String("task", t.name), slog.String("task.id", id), slog.Any("error", err))
		}
		t.app.executions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task", t.name),
			attribute.String("outcome", outcome),
		))
		span.End()
	}()

	return t.wrapped.Execute(ctx, env.Args, env.Kwargs)
}
