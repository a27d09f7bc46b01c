package middlewares

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/ucmsv2/ctxprop/pkg/otelx"
)

// OTel starts a server span per request, continuing the trace of an incoming
// traceparent header. Paths carry usernames, so span names use the method only.
func OTel(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.server",
		otelhttp.WithPropagators(otelx.Propagator()),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("HTTP %s", r.Method)
		}),
	)
}
