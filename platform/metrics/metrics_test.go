package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("conference"))
	r.Get("/conferences/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.CollectAndCount(requestDuration)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/conferences/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/conferences/456", nil))

	assert.Equal(t, before+1, testutil.CollectAndCount(requestDuration))
}

func TestMetricsHandler(t *testing.T) {
	IdentityLookupFallback.WithLabelValues("test").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "identity_lookup_fallback_total")
}
