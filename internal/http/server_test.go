package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/replay/internal/buffer"
	"github.com/cartridge/replay/internal/metrics"
	"github.com/cartridge/replay/internal/storage"
)

func newTestServer(t *testing.T, initialSize int) (*Server, *storage.MemoryBackend) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	reg := prometheus.NewRegistry()
	backend, err := storage.NewMemoryBackend(storage.Options{
		Mode:        storage.ModePrioritized,
		InitialSize: initialSize,
		MaxSize:     16,
		Alpha:       0.6,
		Epsilon:     buffer.DefaultEpsilon,
		Metrics:     metrics.NewCollector(reg, logger),
		Logger:      logger,
	})
	require.NoError(t, err)
	return NewServer(backend, reg, logger), backend
}

func fill(t *testing.T, backend storage.Backend, n int) {
	t.Helper()
	transitions := make([]buffer.Transition, n)
	for i := range transitions {
		transitions[i] = buffer.Transition{State: []float32{float32(i)}, Action: []float32{0}, Reward: 1, NextState: []float32{0}}
	}
	_, err := backend.StoreBatch(context.Background(), transitions)
	require.NoError(t, err)
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	s.Routes().ServeHTTP(res, httptest.NewRequest(method, path, nil))
	return res
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, 0)
	res := serve(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get("X-Correlation-ID"))
}

func TestReadyzFollowsInitialization(t *testing.T) {
	s, backend := newTestServer(t, 3)

	res := serve(s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	fill(t, backend, 3)
	res = serve(s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code, "size equal to initial size is not ready")

	fill(t, backend, 1)
	res = serve(s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestStatsAndReset(t *testing.T) {
	s, backend := newTestServer(t, 0)
	fill(t, backend, 5)

	res := serve(s, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, res.Code)
	var stats storage.Stats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stats))
	assert.Equal(t, storage.ModePrioritized, stats.Mode)
	assert.Equal(t, 5, stats.Size)
	assert.Equal(t, 16, stats.Capacity)
	assert.InDelta(t, 5.0, stats.TotalPriority, 1e-9)

	res = serve(s, http.MethodPost, "/api/v1/reset")
	require.Equal(t, http.StatusOK, res.Code)

	res = serve(s, http.MethodGet, "/api/v1/stats")
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stats))
	assert.Equal(t, 0, stats.Size)

	res = serve(s, http.MethodGet, "/api/v1/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestClosedBackend(t *testing.T) {
	s, backend := newTestServer(t, 0)
	require.NoError(t, backend.Close())

	res := serve(s, http.MethodGet, "/api/v1/stats")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	res = serve(s, http.MethodPost, "/api/v1/reset")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, backend := newTestServer(t, 0)
	fill(t, backend, 2)

	res := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.True(t, strings.Contains(body, "replay_transitions_added_total"))
	assert.True(t, strings.Contains(body, "replay_buffer_size 2"))
}
