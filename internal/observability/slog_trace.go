package observability

import (
	"context"
	"log/slog"

	"github.com/geocoder89/sitehub/internal/actorctx"
	"go.opentelemetry.io/otel/trace"
)

// ctxAttr pulls one correlation value off the context.
type ctxAttr struct {
	key  string
	from func(context.Context) (string, bool)
}

var correlationAttrs = []ctxAttr{
	{"request_id", actorctx.RequestIDFrom},
	{"actor_id", actorctx.UserIDFrom},
	{"project_id", actorctx.ProjectIDFrom},
}

// TraceHandler decorates records with the active span and whatever
// correlation ids the request context carries.
type TraceHandler struct {
	next slog.Handler
}

func NewTraceHandler(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, r)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	for _, a := range correlationAttrs {
		if v, ok := a.from(ctx); ok {
			r.AddAttrs(slog.String(a.key, v))
		}
	}

	return h.next.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewTraceHandler(h.next.WithAttrs(attrs))
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return NewTraceHandler(h.next.WithGroup(name))
}
