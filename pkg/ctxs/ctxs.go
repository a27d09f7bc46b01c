// Package ctxs keeps the ambient values of an execution unit (language,
// timezone and trace parent) on its context.Context.
//
// Activation never mutates a context: it returns a derived one. The caller's
// context therefore keeps its own values, which is what restores the previous
// language and timezone once a scoped unit of work returns, whichever way it
// exits.
package ctxs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"gitlab.com/ucmsv2/ctxprop/pkg/errorx"
	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
)

// TraceParentHeader is the W3C trace context header name.
const TraceParentHeader = "traceparent"

// ErrInvalidIdentifier is wrapped by every error that rejects a language code or zone name.
var ErrInvalidIdentifier = errors.New("invalid identifier")

type languageKey struct{}

type timezoneKey struct{}

// Snapshot is a copy of the ambient values active on a context.
type Snapshot struct {
	Language    string
	Timezone    string
	TraceParent string
}

// Store resolves ambient values against static configuration: the default
// language and timezone, and the set of languages the service can serve.
type Store struct {
	defaultLanguage language.Tag
	defaultLocation *time.Location
	supported       []language.Tag
	matcher         language.Matcher
}

type Args struct {
	DefaultLanguage string
	DefaultTimezone string
	Languages       []string
}

func NewStore(args Args) (*Store, error) {
	if strings.TrimSpace(args.DefaultLanguage) == "" {
		args.DefaultLanguage = language.English.String()
	}
	if strings.TrimSpace(args.DefaultTimezone) == "" {
		args.DefaultTimezone = time.UTC.String()
	}

	defaultTag, err := language.Parse(strings.TrimSpace(args.DefaultLanguage))
	if err != nil {
		return nil, InvalidIdentifier(i18nx.FieldLanguage, args.DefaultLanguage, err)
	}
	loc, err := loadLocation(args.DefaultTimezone)
	if err != nil {
		return nil, err
	}

	// The default goes first: the matcher falls back to index 0.
	supported := []language.Tag{defaultTag}
	for _, code := range args.Languages {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, InvalidIdentifier(i18nx.FieldLanguage, code, err)
		}
		if tag == defaultTag {
			continue
		}
		supported = append(supported, tag)
	}

	return &Store{
		defaultLanguage: defaultTag,
		defaultLocation: loc,
		supported:       supported,
		matcher:         language.NewMatcher(supported),
	}, nil
}

func (s *Store) DefaultLanguage() string {
	return s.defaultLanguage.String()
}

func (s *Store) DefaultTimezone() string {
	return s.defaultLocation.String()
}

// SupportedLanguages returns a copy of the supported tags, default first.
func (s *Store) SupportedLanguages() []language.Tag {
	return append([]language.Tag(nil), s.supported...)
}

// Language returns the active language of ctx, or the default.
func (s *Store) Language(ctx context.Context) string {
	return s.LanguageTag(ctx).String()
}

func (s *Store) LanguageTag(ctx context.Context) language.Tag {
	if ctx == nil {
		return s.defaultLanguage
	}
	if tag, ok := ctx.Value(languageKey{}).(language.Tag); ok {
		return tag
	}
	return s.defaultLanguage
}

// TimezoneName returns the IANA name of the active timezone of ctx, or the default.
func (s *Store) TimezoneName(ctx context.Context) string {
	return s.Location(ctx).String()
}

func (s *Store) Location(ctx context.Context) *time.Location {
	if ctx == nil {
		return s.defaultLocation
	}
	if loc, ok := ctx.Value(timezoneKey{}).(*time.Location); ok && loc != nil {
		return loc
	}
	return s.defaultLocation
}

func (s *Store) TraceParent(ctx context.Context) (string, bool) {
	return TraceParent(ctx)
}

func (s *Store) Snapshot(ctx context.Context) Snapshot {
	tp, _ := TraceParent(ctx)
	return Snapshot{
		Language:    s.Language(ctx),
		Timezone:    s.TimezoneName(ctx),
		TraceParent: tp,
	}
}

// ActivateLanguage returns a context whose language is code, matched against
// the supported set. Unknown or malformed codes are rejected.
func (s *Store) ActivateLanguage(ctx context.Context, code string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tag, err := s.MatchLanguage(code)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, languageKey{}, tag), nil
}

// ActivateTimezone returns a context whose timezone is the IANA zone name.
func (s *Store) ActivateTimezone(ctx context.Context, name string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loc, err := loadLocation(name)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, timezoneKey{}, loc), nil
}

// DeactivateTimezone unsets the timezone so reads fall back to the default.
func (s *Store) DeactivateTimezone(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, timezoneKey{}, (*time.Location)(nil))
}

func (s *Store) ActivateTraceParent(ctx context.Context, traceParent string) context.Context {
	return WithTraceParent(ctx, traceParent)
}

// MatchLanguage resolves code to one of the supported tags. Only regional
// variants of a supported language are accepted; a related but different
// language, such as zh-Hant for zh-Hans, is rejected.
func (s *Store) MatchLanguage(code string) (language.Tag, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, InvalidIdentifier(i18nx.FieldLanguage, code, errors.New("empty language code"))
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, InvalidIdentifier(i18nx.FieldLanguage, code, err)
	}
	_, idx, confidence := s.matcher.Match(tag)
	if confidence < language.High {
		return language.Und, InvalidIdentifier(i18nx.FieldLanguage, code, errors.New("language is not supported"))
	}
	return s.supported[idx], nil
}

// NegotiateLanguage picks the best supported tag for an Accept-Language
// header value. It never fails: anything unusable yields the default.
func (s *Store) NegotiateLanguage(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return s.defaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return s.defaultLanguage
	}
	_, idx, confidence := s.matcher.Match(tags...)
	if confidence == language.No {
		return s.defaultLanguage
	}
	return s.supported[idx]
}

// TraceParent serializes the span context active on ctx as a traceparent
// value. It reports false when there is no valid span context.
func TraceParent(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return "", false
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	value := carrier.Get(TraceParentHeader)
	return value, value != ""
}

// WithTraceParent installs the remote span context described by traceParent.
// Malformed values leave ctx as is.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	traceParent = strings.TrimSpace(traceParent)
	if traceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{TraceParentHeader: traceParent}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	// "" and "Local" resolve to host-dependent zones, not IANA identifiers.
	if name == "" || name == "Local" {
		return nil, InvalidIdentifier(i18nx.FieldTimezone, name, errors.New("not an IANA zone name"))
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, InvalidIdentifier(i18nx.FieldTimezone, name, err)
	}
	return loc, nil
}

// InvalidIdentifier reports value as an unusable identifier of the given kind.
// The result wraps ErrInvalidIdentifier and localizes as INVALID_IDENTIFIER.
func InvalidIdentifier(kind, value string, cause error) error {
	return errorx.NewInvalidIdentifier(kind, value).
		WithCause(fmt.Errorf("%w: %s %q: %w", ErrInvalidIdentifier, kind, value, cause))
}
