package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/internal/storage/memory"
	"github.com/zaincode21/uruti-discounts/pkg/health"
	"github.com/zaincode21/uruti-discounts/pkg/httpmiddleware"
)

func newTestHandler(t *testing.T, cfg *Config) (http.Handler, *health.Health) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, err := discount.NewService(memory.New(),
		discount.WithMeterProvider(metricnoop.NewMeterProvider()),
		discount.WithTracerProvider(tracenoop.NewTracerProvider()),
	)
	require.NoError(t, err)

	hs := health.New()
	h := newHTTPHandler(ctx, zaptest.NewLogger(t), cfg, svc, nil, hs,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	return h, hs
}

func TestHTTPHandler(t *testing.T) {
	h, hs := newTestHandler(t, &Config{RateLimit: RateLimitConfig{RPS: 1, Burst: 3}})

	r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	hs.SetReady(true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/discounts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(httpmiddleware.HeaderRequestID))
	assert.JSONEq(t, `[]`, w.Body.String())

	// Burst of three is spent.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/discounts", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHTTPHandler_RateLimitDisabled(t *testing.T) {
	h, _ := newTestHandler(t, &Config{})

	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
