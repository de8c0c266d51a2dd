package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_OK(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Store)
	assert.Equal(t, "ok", resp.Embedding)
	assert.Equal(t, "stub-embed", resp.EmbeddingModel)
	assert.Equal(t, 3, resp.EmbeddingDimension)
}

func TestHealth_EmbeddingDown(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errUpstream

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "ok", resp.Store)
	assert.Equal(t, "error", resp.Embedding)
	assert.NotContains(t, w.Body.String(), errUpstream.Error())
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errUpstream
	for i := 0; i < 3; i++ {
		f.addEntry(t, "pending entry", fixedNow.Add(-time.Duration(i)*time.Hour))
	}
	f.embedder.err = nil

	w := postJSON(t, f.router, "/api/backfill?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BackfillResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 0, resp.Failed)
	assert.Equal(t, 1, resp.Remaining)

	w = postJSON(t, f.router, "/api/backfill", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 0, resp.Remaining)
}

func TestBackfill_ClampsLimit(t *testing.T) {
	f := newFixture(t)

	for _, query := range []string{"?limit=0", "?limit=-5", "?limit=1000", "?limit=abc"} {
		w := postJSON(t, f.router, "/api/backfill"+query, "")
		assert.Equal(t, http.StatusOK, w.Code, query)
	}
}

func TestBackfill_FailuresAreCounted(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errUpstream
	f.addEntry(t, "never embeds", fixedNow)

	w := postJSON(t, f.router, "/api/backfill", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp BackfillResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 1, resp.Remaining)
}
