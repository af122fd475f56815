package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/v1/runs/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/v1/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	series := testutil.CollectAndCount(httpRequestDurationSeconds)
	accepted := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "202"))
	conflicts := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "409"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/v1/runs/", nil),
		httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil),
		httptest.NewRequest(http.MethodGet, "/v1/runs/run-2", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.InDelta(t, accepted+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "202")), 0)
	assert.InDelta(t, conflicts+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "409")), 0)

	// Both run lookups share the {id} pattern instead of one series per run.
	require.Equal(t, series+2, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestMiddlewareDefaultsStatusToOK(t *testing.T) {
	Init()
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "ok", rec.Body.String())
	assert.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), 0)
}
