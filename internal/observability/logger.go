package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/tickerql/tickerql/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// NewLogger builds the process logger. Records logged with a context that
// carries a trace id get a trace_id attribute, so resolver and generator
// logs line up with the request log.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}

	var base slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		base = slog.NewJSONHandler(writer, opts)
	}

	attrs := []slog.Attr{slog.String("service", cfg.Service.Name)}
	if cfg.Profile != "" {
		attrs = append(attrs, slog.String("profile", string(cfg.Profile)))
	}
	return slog.New(traceHandler{Handler: base.WithAttrs(attrs)})
}

type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		record.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, record)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{Handler: h.Handler.WithGroup(name)}
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(traceIDKey).(string)
	return value
}
