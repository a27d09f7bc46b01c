package logging

import (
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"

	"gitlab.com/ucmsv2/ctxprop/pkg/env"
)

// Setup builds the process logger for mode. Records go to stdout (JSON in
// prod, text elsewhere) and to the global OpenTelemetry logger provider,
// which is a no-op until an exporter is installed.
//
// The returned cleanup function must be called before exit.
func Setup(mode env.Mode) (*slog.Logger, func()) {
	return SetupWriter(os.Stdout, mode)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, mode env.Mode) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: mode.SlogLevel()}

	var local slog.Handler
	if mode == env.Prod {
		local = slog.NewJSONHandler(w, opts)
	} else {
		local = slog.NewTextHandler(w, opts)
	}

	bridge := otelslog.NewHandler("ctxprop", otelslog.WithLoggerProvider(global.GetLoggerProvider()))
	logger := slog.New(fanout{handlers: []slog.Handler{local, bridge}})

	cleanup := func() {
		if f, ok := w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
			_ = f.Close()
		}
	}
	return logger, cleanup
}
