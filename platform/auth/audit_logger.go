package auth

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditLogger writes one JSON line per authenticated request once the handler
// has finished, so the recorded status reflects what the caller saw.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(out io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(out, nil))}
}

// remoteAddr prefers the first hop in X-Forwarded-For since the services are
// normally behind the gateway.
func remoteAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func routeAttrs(r *http.Request) (string, []any) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path, nil
	}

	attrs := make([]any, 0, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
	}

	pattern := rctx.RoutePattern()
	if pattern == "" {
		pattern = r.URL.Path
	}
	return pattern, attrs
}

func (a AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		actor := slog.Group("actor", slog.String("user_id", "anonymous"))
		if p, err := PrincipalFromContext(r); err == nil {
			actor = slog.Group("actor",
				slog.String("user_id", p.UserId.String()),
				slog.String("email", p.Email),
				slog.Any("roles", p.Roles),
			)
		}

		route, params := routeAttrs(r)
		a.logger.Info("request",
			actor,
			slog.String("remote_addr", remoteAddr(r)),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.String("path", r.URL.Path),
			slog.Group("params", params...),
			slog.String("query", r.URL.RawQuery),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
