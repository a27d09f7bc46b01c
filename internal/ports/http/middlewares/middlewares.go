package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/httpx"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
	"gitlab.com/ucmsv2/ctxprop/pkg/sanitizex"
)

var (
	tracer = otel.Tracer("ctxprop/internal/ports/http/middlewares")
	logger = otelslog.NewLogger("ctxprop/internal/ports/http/middlewares")
)

const (
	HeaderTimezone        = "X-Timezone"
	HeaderAcceptLanguage  = "Accept-Language"
	HeaderContentLanguage = "Content-Language"
)

// Middleware activates the ambient language and timezone of each request.
type Middleware struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	store      *ctxs.Store
	errhandler *httpx.ErrorHandler
}

type Args struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Store      *ctxs.Store
	Errhandler *httpx.ErrorHandler
}

func NewMiddleware(args Args) *Middleware {
	if args.Store == nil {
		panic("middlewares: store is required")
	}
	if args.Errhandler == nil {
		panic("middlewares: error handler is required")
	}
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	return &Middleware{
		tracer:     args.Tracer,
		logger:     args.Logger,
		store:      args.Store,
		errhandler: args.Errhandler,
	}
}

// Language negotiates Accept-Language against the supported languages and
// activates the result for the rest of the request. It never rejects a
// request: unusable headers select the default language.
func (m *Middleware) Language(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := m.store.NegotiateLanguage(r.Header.Get(HeaderAcceptLanguage))

		ctx, err := m.store.ActivateLanguage(r.Context(), tag.String())
		if err != nil {
			// Negotiation only yields supported tags.
			m.logger.ErrorContext(r.Context(), "failed to activate negotiated language", slog.String("language", tag.String()), slog.Any("error", err))
			ctx = r.Context()
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request.language", m.store.Language(ctx)))

		w.Header().Set(HeaderContentLanguage, m.store.Language(ctx))
		w.Header().Add("Vary", HeaderAcceptLanguage)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Timezone activates the zone named by the X-Timezone header. Without the
// header, or with a blank one, the default zone applies. A value that is not
// a clean zone name as sent is a 400 response.
func (m *Middleware) Timezone(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderTimezone))
		if raw == "" {
			next.ServeHTTP(w, r.WithContext(m.store.DeactivateTimezone(r.Context())))
			return
		}

		ctx := r.Context()
		var err error
		if name := sanitizex.CleanToken(raw); name != raw {
			err = ctxs.InvalidIdentifier(i18nx.FieldTimezone, raw, errors.New("malformed zone name"))
		} else {
			ctx, err = m.store.ActivateTimezone(ctx, name)
		}
		if err != nil {
			_, span := m.tracer.Start(r.Context(), "middlewares.Timezone")
			defer span.End()
			m.errhandler.HandleError(w, r, span, err, "invalid timezone header")
			return
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request.timezone", raw))

		w.Header().Add("Vary", HeaderTimezone)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
