package watermillx

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug - 4})), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	base, buf := newBufferLogger()
	logger := NewSlogLogger(base, slog.LevelInfo)

	logger.Debug("debug line", nil)
	logger.Trace("trace line", nil)
	logger.Info("info line", watermill.LogFields{"topic": "tasks"})
	logger.Error("error line", errors.New("boom"), nil)

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "trace line")
	assert.Contains(t, out, "info line")
	assert.Contains(t, out, "topic=tasks")
	assert.Contains(t, out, "error=boom")
}

func TestSlogLogger_Trace(t *testing.T) {
	base, buf := newBufferLogger()
	logger := NewSlogLogger(base, slog.LevelDebug-1)

	logger.Trace("trace line", nil)
	assert.Contains(t, buf.String(), "trace line")
}

func TestSlogLogger_With(t *testing.T) {
	base, buf := newBufferLogger()
	logger := NewSlogLogger(base, slog.LevelDebug).With(watermill.LogFields{"handler": "taskx.worker"})

	logger.Debug("handled", nil)
	assert.Contains(t, buf.String(), "handler=taskx.worker")
}

func TestNewSlogLogger_NilLogger(t *testing.T) {
	assert.NotNil(t, NewSlogLogger(nil, slog.LevelInfo))
}
