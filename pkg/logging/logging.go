package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"tokenflight/config"
)

// RedactedValue replaces secrets in log output
const RedactedValue = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the log
var sensitiveKeys = map[string]struct{}{
	"api_key":            {},
	"private_key":        {},
	"signed_transaction": {},
	"authorization":      {},
}

// IsSensitive reports whether values logged under key are redacted
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the process logger from cfg, installs it as the slog default
// and routes the standard library logger through it. Output goes to w, or
// stderr when w is nil, so command output on stdout stays clean.
func Setup(service string, cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if IsSensitive(attr.Key) && attr.Value.String() != "" {
				return slog.String(attr.Key, RedactedValue)
			}
			return attr
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	base := slog.New(handler.WithAttrs(attrs))
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
