// Package taskx makes deferred work carry the language and timezone of the
// code that submitted it.
//
// Wrap turns a Func into a Wrapped value. At submission, Inject copies the
// submitter's ambient language and timezone into the reserved kwargs
// KwargLanguage and KwargTimezone unless the caller already set them. At
// execution, Execute pops those kwargs, activates them on a context derived
// from the executor's own, and runs the work with the cleaned kwargs. The
// executor's context is never modified, so its values are back in effect as
// soon as Execute returns, whether the work succeeded, failed or panicked.
package taskx

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
)

// Reserved kwargs keys. They must match the keys used by every producer and
// consumer of the task queue.
const (
	KwargLanguage = "x-language"
	KwargTimezone = "x-timezone"
)

// Func is a unit of deferred work.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Envelope is the argument bundle of one task submission.
type Envelope struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// Wrapped is a Func that accepts the reserved kwargs on top of its own.
type Wrapped struct {
	fn    Func
	store *ctxs.Store
}

// Wrap does not run fn.
func Wrap(store *ctxs.Store, fn Func) *Wrapped {
	if store == nil {
		panic("taskx: store is required")
	}
	if fn == nil {
		panic("taskx: task func is required")
	}
	return &Wrapped{fn: fn, store: store}
}

// Inject returns a copy of kwargs carrying the ambient language and timezone
// of ctx. Values already present in kwargs win.
func (w *Wrapped) Inject(ctx context.Context, kwargs map[string]any) map[string]any {
	out := make(map[string]any, len(kwargs)+2)
	maps.Copy(out, kwargs)

	if _, ok := out[KwargLanguage]; !ok {
		out[KwargLanguage] = w.store.Language(ctx)
	}
	if _, ok := out[KwargTimezone]; !ok {
		out[KwargTimezone] = w.store.TimezoneName(ctx)
	}

	return out
}

// Execute runs the work under the language and timezone found in kwargs.
// Absent or empty values fall back to the store defaults; anything else that
// cannot be activated fails before the work starts. The work's result and
// error are returned unchanged.
func (w *Wrapped) Execute(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	kwargs = maps.Clone(kwargs)
	if kwargs == nil {
		kwargs = make(map[string]any)
	}

	lang, err := popIdentifier(kwargs, KwargLanguage, i18nx.FieldLanguage, w.store.DefaultLanguage())
	if err != nil {
		return nil, err
	}
	tz, err := popIdentifier(kwargs, KwargTimezone, i18nx.FieldTimezone, w.store.DefaultTimezone())
	if err != nil {
		return nil, err
	}

	scoped, err := w.store.ActivateLanguage(ctx, lang)
	if err != nil {
		return nil, err
	}
	scoped, err = w.store.ActivateTimezone(scoped, tz)
	if err != nil {
		return nil, err
	}

	return w.fn(scoped, args, kwargs)
}

func popIdentifier(kwargs map[string]any, key, kind, fallback string) (string, error) {
	raw, ok := kwargs[key]
	delete(kwargs, key)
	if !ok || raw == nil {
		return fallback, nil
	}

	value, ok := raw.(string)
	if !ok {
		return "", errorx.NewInvalidIdentifier(kind, fmt.Sprint(raw)).
			WithCause(fmt.Errorf("%w: %s must be a string, got %T", ctxs.ErrInvalidIdentifier, key, raw))
	}
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return value, nil
}
