// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// spanHandler adds the active otel trace and span ids to every record.
type spanHandler struct {
	slog.Handler
}

func (h spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{h.Handler.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{h.Handler.WithGroup(name)}
}

// New builds a logger writing to w. JSON output is used for the long-running
// commands, text for interactive use.
func New(w io.Writer, debug, json bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(spanHandler{h})
}

// Setup installs the logger as slog's default and routes the standard log
// package through it.
func Setup(debug, json bool) *slog.Logger {
	logger := New(os.Stderr, debug, json)
	slog.SetDefault(logger)
	log.SetFlags(0)
	return logger
}
