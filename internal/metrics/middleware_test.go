package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func durationSamples(t *testing.T, method, route string) uint64 {
	t.Helper()
	observer, err := httpRequestDurationSeconds.GetMetricWithLabelValues(method, route)
	require.NoError(t, err)
	metric, ok := observer.(prometheus.Metric)
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

func TestMiddlewareLabelsChiRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Put("/v1/runs/{run_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	before := durationSamples(t, http.MethodPut, "/v1/runs/{run_id}")
	codesBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPut, "202"))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/runs/"+id, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	assert.Equal(t, before+2, durationSamples(t, http.MethodPut, "/v1/runs/{run_id}"))
	assert.InDelta(t, codesBefore+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPut, "202")), 1e-9)
}

func TestMiddlewareFallsBackToUnknownRoute(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := durationSamples(t, http.MethodDelete, "unknown")
	codesBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "418"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/outside/chi", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, before+1, durationSamples(t, http.MethodDelete, "unknown"))
	assert.Zero(t, durationSamples(t, http.MethodDelete, "/outside/chi"))
	assert.InDelta(t, codesBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "418")), 1e-9)
}

func TestMiddlewareDefaultsStatusToOK(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodOptions, "200"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, "ok", rec.Body.String())
	assert.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodOptions, "200")), 1e-9)
}
