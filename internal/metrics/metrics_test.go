package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/stats/{eventId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/stats/{eventId}", "404")))
}

func TestRecordRegistration(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRegistration("registered")
	m.RecordRegistration("registered")
	m.RecordRegistration("full")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.registrationsTotal.WithLabelValues("registered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registrationsTotal.WithLabelValues("full")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordRegistration("registered")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "events_registrations_attempts_total"))
}
