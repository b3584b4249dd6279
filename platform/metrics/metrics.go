package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by service and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "route", "status"})

	// IdentityLookupFallback counts identity lookups that degraded to an empty
	// result, by cause.
	IdentityLookupFallback = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_lookup_fallback_total",
		Help: "Identity service lookups answered with an empty result because the upstream failed",
	}, []string{"reason"})

	SubmissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "submissions_created_total",
		Help: "Submissions created",
	})

	ReviewsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_submitted_total",
		Help: "Reviews submitted",
	})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Emails handed to the mailer by outcome",
	}, []string{"status"})

	SimilarityQuery = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "submission_similarity_seconds",
		Help: "Time to score a submission against its conference",
	})
)

// Middleware records request latency labelled by the matched route pattern.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			requestDuration.WithLabelValues(service, r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		}
		return http.HandlerFunc(handler)
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
