package watermillx

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// SlogLogger adapts a slog.Logger to watermill. Records below minLevel are
// dropped; watermill's trace level maps to debug and is kept only when
// minLevel is below debug.
type SlogLogger struct {
	logger   *slog.Logger
	minLevel slog.Level
}

func NewSlogLogger(logger *slog.Logger, minLevel slog.Level) watermill.LoggerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{
		logger:   logger,
		minLevel: minLevel,
	}
}

func (l *SlogLogger) shouldLog(level slog.Level) bool {
	return level >= l.minLevel && l.logger.Enabled(context.Background(), level)
}

func (l *SlogLogger) Error(msg string, err error, fields watermill.LogFields) {
	if l.shouldLog(slog.LevelError) {
		l.logger.ErrorContext(context.Background(), msg, l.fieldsToAttrs(fields, slog.Any("error", err))...)
	}
}

func (l *SlogLogger) Info(msg string, fields watermill.LogFields) {
	if l.shouldLog(slog.LevelInfo) {
		l.logger.InfoContext(context.Background(), msg, l.fieldsToAttrs(fields)...)
	}
}

func (l *SlogLogger) Debug(msg string, fields watermill.LogFields) {
	if l.shouldLog(slog.LevelDebug) {
		l.logger.DebugContext(context.Background(), msg, l.fieldsToAttrs(fields)...)
	}
}

func (l *SlogLogger) Trace(msg string, fields watermill.LogFields) {
	if l.minLevel < slog.LevelDebug && l.logger.Enabled(context.Background(), slog.LevelDebug) {
		l.logger.DebugContext(context.Background(), msg, l.fieldsToAttrs(fields)...)
	}
}

func (l *SlogLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &SlogLogger{
		logger:   l.logger.With(l.fieldsToAttrs(fields)...),
		minLevel: l.minLevel,
	}
}

func (l *SlogLogger) fieldsToAttrs(fields watermill.LogFields, extra ...slog.Attr) []any {
	attrs := make([]any, 0, len(fields)+len(extra))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	for _, attr := range extra {
		attrs = append(attrs, attr)
	}
	return attrs
}
