package otelx

import (
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordSpanError records err on span and marks the span failed with desc,
// or with the error text when desc is empty.
func RecordSpanError(span trace.Span, err error, desc string) {
	if span == nil || err == nil {
		return
	}
	if desc == "" {
		desc = err.Error()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, desc)
}

// SetSpanAttrs sets one attribute per entry of attrs, in key order. Nil
// values are skipped, so optional fields such as an absent task kwarg leave
// no attribute behind.
func SetSpanAttrs(span trace.Span, attrs map[string]any) {
	if span == nil || len(attrs) == 0 {
		return
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		if kv, ok := Attr(k, attrs[k]); ok {
			kvs = append(kvs, kv)
		}
	}
	if len(kvs) > 0 {
		span.SetAttributes(kvs...)
	}
}

// Attr converts value to an attribute. Values with no natural attribute type
// are formatted with %v. It reports false for nil values.
func Attr(key string, value any) (attribute.KeyValue, bool) {
	switch v := value.(type) {
	case nil:
		return attribute.KeyValue{}, false
	case string:
		return attribute.String(key, v), true
	case bool:
		return attribute.Bool(key, v), true
	case int:
		return attribute.Int(key, v), true
	case int64:
		return attribute.Int64(key, v), true
	case float64:
		// JSON numbers decode as float64.
		return attribute.Float64(key, v), true
	case []string:
		return attribute.StringSlice(key, v), true
	case time.Time:
		return attribute.String(key, v.Format(time.RFC3339Nano)), true
	case time.Duration:
		return attribute.String(key, v.String()), true
	case *time.Location:
		if v == nil {
			return attribute.KeyValue{}, false
		}
		return attribute.String(key, v.String()), true
	case error:
		return attribute.String(key, v.Error()), true
	case fmt.Stringer:
		return attribute.String(key, v.String()), true
	default:
		return attribute.String(key, fmt.Sprintf("%v", v)), true
	}
}
