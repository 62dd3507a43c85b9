package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type LoggerConfig struct {
	Service string
	Env     string
	// Level is debug, info, warn or error. Empty picks debug in dev and
	// info elsewhere.
	Level string
	// Format is json or text. Empty picks json.
	Format string
	Output io.Writer
}

func parseLevel(s, env string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	}
	if env == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger. Every record carries service and env,
// plus the correlation ids found on the context.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level, cfg.Env)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	var base []slog.Attr
	if cfg.Service != "" {
		base = append(base, slog.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		base = append(base, slog.String("env", cfg.Env))
	}
	if len(base) > 0 {
		h = h.WithAttrs(base)
	}

	return slog.New(NewTraceHandler(h))
}
