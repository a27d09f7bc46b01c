package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/ARUMANDESU/validation"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
)

var logger = otelslog.NewLogger("ctxprop/pkg/httpx")

// ErrorHandler writes errors as JSON envelopes whose message is localized in
// the ambient language of the request.
type ErrorHandler struct {
	bundle *i18n.Bundle
	store  *ctxs.Store
	logger *slog.Logger
}

type ErrorHandlerArgs struct {
	Bundle *i18n.Bundle
	Store  *ctxs.Store
	Logger *slog.Logger
}

func NewErrorHandler(args ErrorHandlerArgs) *ErrorHandler {
	if args.Bundle == nil {
		panic("httpx: bundle is required")
	}
	if args.Store == nil {
		panic("httpx: store is required")
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	return &ErrorHandler{bundle: args.Bundle, store: args.Store, logger: args.Logger}
}

// Localizer returns a localizer for the ambient language of ctx.
func (h *ErrorHandler) Localizer(ctx context.Context) *i18n.Localizer {
	return i18n.NewLocalizer(h.bundle, h.store.Language(ctx))
}

// HandleError records err on span, when there is one, and writes the response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, span trace.Span, err error, msg string) {
	if span != nil {
		otelx.RecordSpanError(span, err, msg)
	}

	localizer := h.Localizer(r.Context())
	i18nErr := h.classify(err)
	status := i18nErr.HTTPStatusCode()

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	} else {
		h.logger.WarnContext(r.Context(), msg, slog.Any("error", err))
	}

	message := i18nErr.Localize(localizer)
	if details := h.validationDetails(err, localizer); details != "" {
		message = message + ": " + details
	}
	writeError(w, r, i18nErr.Code, message, status)
}

// classify maps err to the I18nError that describes it to a client.
func (h *ErrorHandler) classify(err error) *errorx.I18nError {
	var i18nErr *errorx.I18nError
	var valErrs validation.Errors
	var valErr validation.Error

	switch {
	case errors.As(err, &i18nErr):
		return i18nErr
	case errors.As(err, &valErrs), errors.As(err, &valErr):
		return errorx.NewInvalidRequest().WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return errorx.NewUpstreamTimeout().WithCause(err)
	default:
		return errorx.NewInternalError().WithCause(err)
	}
}

// validationDetails localizes the validation failures carried by err, if any.
func (h *ErrorHandler) validationDetails(err error, localizer *i18n.Localizer) string {
	var valErrs validation.Errors
	if errors.As(err, &valErrs) {
		fields := make([]string, 0, len(valErrs))
		for field := range valErrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		var msg strings.Builder
		for i, field := range fields {
			if i > 0 {
				msg.WriteString("; ")
			}
			fmt.Fprintf(&msg, "%s: %s", field, localizeValidation(localizer, valErrs[field]))
		}
		return msg.String()
	}

	var valErr validation.Error
	if errors.As(err, &valErr) {
		return localizeValidation(localizer, valErr)
	}
	return ""
}

func localizeValidation(localizer *i18n.Localizer, err error) string {
	var valErr validation.Error
	if !errors.As(err, &valErr) {
		return err.Error()
	}
	msg, lerr := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    valErr.Code(),
		TemplateData: valErr.Params(),
	})
	if lerr != nil || msg == "" {
		return valErr.Error()
	}
	return msg
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	logger.WarnContext(r.Context(), "Bad request", "message", message)
	writeError(w, r,
		errorx.CodeInvalid,
		message,
		http.StatusBadRequest,
	)
}

func writeError(w http.ResponseWriter, r *http.Request,
	code errorx.Code,
	message string,
	status int,
) {
	response := Envelope{
		"code":    code,
		"message": message,
		"success": false,
	}

	err := WriteJSON(w, status, response, nil)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to write error response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
