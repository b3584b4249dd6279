package logging

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// DOMAIN OPERATIONS
	CONFERENCE   LogCode = "CONFERENCE"
	SUBMISSION   LogCode = "SUBMISSION"
	REVIEW       LogCode = "REVIEW"
	INVITATION   LogCode = "INVITATION"
	IDENTITY     LogCode = "IDENTITY"
	NOTIFICATION LogCode = "NOTIFICATION"

	// Cross service calls that fell back to an empty result.
	UPSTREAM_DEGRADED LogCode = "UPSTREAM_DEGRADED"
)

// victoriaKeys renames time and msg to the _time and _msg fields VictoriaLogs
// indexes on.
func victoriaKeys(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.String("_time", a.Value.Time().UTC().Format("2006-01-02 15:04:05"))
	case slog.MessageKey:
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewHandler builds a handler for the given format. Format "victoria" emits
// JSON with the VictoriaLogs field names, "json" plain JSON, anything else text.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	switch format {
	case "victoria":
		opts.ReplaceAttr = victoriaKeys
		return slog.NewJSONHandler(w, opts)
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

func NewLogger(w io.Writer, format, level string) *slog.Logger {
	return slog.New(NewHandler(w, format, level))
}

// NewFanoutLogger writes every record twice. The log file gets JSON tagged with
// the service name for filtering, VictoriaLogs keyed when format is
// "victoria". The console gets text.
func NewFanoutLogger(file, console io.Writer, service, format, level string) *slog.Logger {
	if format != "victoria" {
		format = "json"
	}
	fileHandler := NewHandler(file, format, level).WithAttrs([]slog.Attr{
		slog.String("service_type", service),
	})
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: ParseLevel(level)})

	return slog.New(slogmulti.Fanout(fileHandler, consoleHandler))
}
