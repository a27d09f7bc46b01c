// Package hello renders the localized greeting served over HTTP, gRPC and the
// task queue. Everything it prints depends on the ambient language and
// timezone of the context it runs in.
package hello

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ARUMANDESU/validation"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
	"gitlab.com/ucmsv2/ctxprop/pkg/logging"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
	"gitlab.com/ucmsv2/ctxprop/pkg/sanitizex"
	"gitlab.com/ucmsv2/ctxprop/pkg/taskx"
	"gitlab.com/ucmsv2/ctxprop/pkg/validationx"
)

var (
	tracer = otel.Tracer("ctxprop/internal/application/hello")
	logger = otelslog.NewLogger("ctxprop/internal/application/hello")
)

// TaskName is the name the greeting task is registered under.
const TaskName = "hello"

// Greeting is a rendered greeting. Every text field is already localized.
type Greeting struct {
	Language        string   `json:"language"`
	Timezone        string   `json:"timezone"`
	CurrentLanguage string   `json:"current_language"`
	Hello           string   `json:"hello"`
	Cats            []string `json:"cats"`
	CurrentTime     string   `json:"current_time"`
}

// Text joins the greeting lines with newlines.
func (g Greeting) Text() string {
	lines := make([]string, 0, 3+len(g.Cats))
	lines = append(lines, g.CurrentLanguage, g.Hello)
	lines = append(lines, g.Cats...)
	lines = append(lines, g.CurrentTime)
	return strings.Join(lines, "\n")
}

type App struct {
	store  *ctxs.Store
	bundle *i18n.Bundle
	now    func() time.Time
	tracer trace.Tracer
	logger *slog.Logger

	// Task is nil when the App was built without a task registry.
	Task *taskx.Task
}

type Args struct {
	Store  *ctxs.Store
	Bundle *i18n.Bundle
	// Tasks, when set, gets the greeting registered as TaskName.
	Tasks  *taskx.App
	Now    func() time.Time
	Tracer trace.Tracer
	Logger *slog.Logger
}

func NewApp(args Args) *App {
	if args.Store == nil {
		panic("hello: store is required")
	}
	if args.Bundle == nil {
		panic("hello: bundle is required")
	}
	if args.Now == nil {
		args.Now = time.Now
	}
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	app := &App{
		store:  args.Store,
		bundle: args.Bundle,
		now:    args.Now,
		tracer: args.Tracer,
		logger: args.Logger,
	}
	if args.Tasks != nil {
		app.Task = args.Tasks.Register(TaskName, app.task)
	}
	return app
}

// Localizer returns a localizer for the ambient language of ctx.
func (a *App) Localizer(ctx context.Context) *i18n.Localizer {
	return i18n.NewLocalizer(a.bundle, a.store.Language(ctx))
}

// Render builds the greeting for username in the ambient language and
// timezone of ctx.
func (a *App) Render(ctx context.Context, username string) (Greeting, error) {
	const op = "hello.App.Render"
	ctx, span := a.tracer.Start(ctx, "hello.Render")
	defer span.End()

	username, err := cleanUsername(username)
	if err != nil {
		otelx.RecordSpanError(span, err, "invalid username")
		return Greeting{}, errorx.Wrap(err, op)
	}

	lang := a.store.Language(ctx)
	loc := a.store.Location(ctx)
	span.SetAttributes(
		attribute.String("hello.language", lang),
		attribute.String("hello.timezone", loc.String()),
	)

	localizer := i18n.NewLocalizer(a.bundle, lang)
	user := map[string]any{i18nx.ArgUsername: username}

	g := Greeting{
		Language:        lang,
		Timezone:        loc.String(),
		CurrentLanguage: i18nx.Localize(localizer, i18nx.KeyCurrentLanguage, map[string]any{i18nx.ArgLanguage: lang}),
		Hello:           i18nx.Localize(localizer, i18nx.KeyHello, user),
		Cats: []string{
			i18nx.LocalizePlural(localizer, i18nx.KeyPersonCats, 1, user),
			i18nx.LocalizePlural(localizer, i18nx.KeyPersonCats, 2, user),
		},
		CurrentTime: i18nx.Localize(localizer, i18nx.KeyCurrentTime, map[string]any{
			i18nx.ArgTimezone: loc.String(),
			i18nx.ArgTime:     a.now().In(loc).Format(time.RFC3339Nano),
		}),
	}

	a.logger.DebugContext(ctx, "greeting rendered",
		slog.String("username", logging.RedactUsername(username)),
		slog.String("language", lang),
		slog.String("timezone", loc.String()),
	)
	return g, nil
}

// ApplyTask runs the greeting task in-process and returns its text.
func (a *App) ApplyTask(ctx context.Context, username string) (string, error) {
	const op = "hello.App.ApplyTask"
	if a.Task == nil {
		return "", fmt.Errorf("%s: %w", op, taskx.ErrUnknownTask)
	}
	res, err := a.Task.Apply(ctx, []any{username}, nil)
	if err != nil {
		return "", errorx.Wrap(err, op)
	}
	return resultText(ctx, res, op)
}

// ApplyTaskAsync queues the greeting task and waits for its text.
func (a *App) ApplyTaskAsync(ctx context.Context, username string) (string, error) {
	const op = "hello.App.ApplyTaskAsync"
	if a.Task == nil {
		return "", fmt.Errorf("%s: %w", op, taskx.ErrUnknownTask)
	}
	// Invalid usernames fail before submission with a validation error.
	username, err := cleanUsername(username)
	if err != nil {
		return "", errorx.Wrap(err, op)
	}
	res, err := a.Task.ApplyAsync(ctx, []any{username}, nil)
	if err != nil {
		return "", errorx.Wrap(err, op)
	}
	return resultText(ctx, res, op)
}

func cleanUsername(username string) (string, error) {
	username = sanitizex.CleanSingleLine(username)
	if err := validation.Validate(username, validationx.UsernameRules...); err != nil {
		return "", errorx.NewValidationFieldFailed(i18nx.FieldUsername).WithCause(err)
	}
	return username, nil
}

func resultText(ctx context.Context, res *taskx.AsyncResult, op string) (string, error) {
	value, err := res.Get(ctx)
	if err != nil {
		return "", errorx.Wrap(err, op)
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected task result %T", op, value)
	}
	return text, nil
}

func (a *App) task(ctx context.Context, args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, errorx.NewInvalidRequest().WithCause(fmt.Errorf("expected 1 argument, got %d", len(args)))
	}
	username, ok := args[0].(string)
	if !ok {
		return nil, errorx.NewValidationFieldFailed(i18nx.FieldUsername).
			WithCause(fmt.Errorf("username must be a string, got %T", args[0]))
	}
	g, err := a.Render(ctx, username)
	if err != nil {
		return nil, err
	}
	return g.Text(), nil
}
