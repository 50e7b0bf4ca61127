package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartierlabs/prospector/internal/pipeline"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(pipeline.NewRunState(), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProgressReflectsRunState(t *testing.T) {
	t.Parallel()

	state := pipeline.NewRunState()
	state.MarkCompleted("plombier@Nice")
	state.AddListings(12)
	state.SetActiveWorkers(2)

	srv := NewServer(state, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 1, snap.Counters.CombosProcessed)
	require.Equal(t, 12, snap.Counters.ListingsFound)
	require.Equal(t, 1, snap.CompletedKeys)
	require.Equal(t, 2, snap.ActiveWorkers)
}

func TestMetricsEndpointServes(t *testing.T) {
	t.Parallel()

	srv := NewServer(pipeline.NewRunState(), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}
