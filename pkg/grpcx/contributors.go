package grpcx

import (
	"context"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
)

// Metadata keys carried on gRPC calls.
const (
	KeyLanguage    = "x-language"
	KeyTimezone    = "x-timezone"
	KeyTraceParent = ctxs.TraceParentHeader
)

// TraceContributor adds the traceparent of the active span, if there is one.
func TraceContributor(store *ctxs.Store) Contributor {
	return ContributorFunc(func(ctx context.Context) ([]Entry, error) {
		tp, ok := store.TraceParent(ctx)
		if !ok {
			return nil, nil
		}
		return []Entry{{Key: KeyTraceParent, Value: tp}}, nil
	})
}

// LanguageContributor always adds the active language.
func LanguageContributor(store *ctxs.Store) Contributor {
	return ContributorFunc(func(ctx context.Context) ([]Entry, error) {
		return []Entry{{Key: KeyLanguage, Value: store.Language(ctx)}}, nil
	})
}

// TimezoneContributor always adds the active timezone.
func TimezoneContributor(store *ctxs.Store) Contributor {
	return ContributorFunc(func(ctx context.Context) ([]Entry, error) {
		return []Entry{{Key: KeyTimezone, Value: store.TimezoneName(ctx)}}, nil
	})
}

// DefaultContributors returns trace, language and timezone, in that order.
func DefaultContributors(store *ctxs.Store) []Contributor {
	return []Contributor{
		TraceContributor(store),
		LanguageContributor(store),
		TimezoneContributor(store),
	}
}
