package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/cli"
	"github.com/hyperjump/museai/internal/config"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/indexer"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/search"
	"github.com/hyperjump/museai/internal/storage"
)

var vocab = map[string]int{
	"silver": 0, "crown": 0,
	"bronze": 1, "lamp": 1,
	"stone": 2, "tablet": 2,
}

type fixture struct {
	srv      *Server
	embedder *embedding.KeywordEmbedder
	runs     *storage.SQLiteRuns
}

func newFixture(t *testing.T, build bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderHashing
	cfg.Data.IndexPath = filepath.Join(dir, "artifacts.index")
	cfg.Data.MetadataPath = filepath.Join(dir, "artifacts_meta.db")
	cfg.Retrieval.MaxK = 10
	paths := artifact.Paths{Index: cfg.Data.IndexPath, Metadata: cfg.Data.MetadataPath}

	if build {
		items := []*models.Item{
			{ID: 1, Title: "Silver crown", ShortLabel: "headdress", Description: "A silver crown.", Period: "Late Period"},
			{ID: 2, Title: "Bronze lamp", ShortLabel: "oil lamp", Description: "A bronze lamp."},
			{ID: 3, Title: "Stone tablet", ShortLabel: "inscription", Description: "A stone tablet."},
		}
		_, err := indexer.NewIndexer(embedding.NewKeywordEmbedder(3, vocab), paths).Build(context.Background(), items)
		require.NoError(t, err)
	}

	runs, err := storage.NewSQLiteRuns(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	emb := embedding.NewKeywordEmbedder(3, vocab)
	logger := zaptest.NewLogger(t)
	retriever := search.NewRetriever(emb, paths, search.WithLogger(logger))
	return &fixture{srv: NewServer(retriever, runs, cfg, logger), embedder: emb, runs: runs}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	w := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestRetrieve(t *testing.T) {
	f := newFixture(t, true)
	w := f.get(t, "/api/v1/retrieve?q=bronze+lamp&k=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.RetrievalResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 2, res.K)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, int64(2), res.Hits[0].ID)
	assert.Equal(t, 1, res.Hits[0].Rank)
}

func TestRetrieve_defaultK(t *testing.T) {
	f := newFixture(t, true)
	w := f.get(t, "/api/v1/retrieve?q=stone")
	require.Equal(t, http.StatusOK, w.Code)
	var res models.RetrievalResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 3, res.K)
	assert.Len(t, res.Hits, 3)
}

func TestRetrieve_badRequests(t *testing.T) {
	f := newFixture(t, true)
	for _, path := range []string{
		"/api/v1/retrieve?q=",
		"/api/v1/retrieve?q=lamp&k=abc",
		"/api/v1/retrieve?q=lamp&k=0",
		"/api/v1/retrieve?q=lamp&k=11",
	} {
		w := f.get(t, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	assert.Equal(t, 0, f.embedder.Calls())
}

func TestRetrieve_notBuilt(t *testing.T) {
	f := newFixture(t, false)
	w := f.get(t, "/api/v1/retrieve?q=lamp")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "museai build")
	assert.Equal(t, 0, f.embedder.Calls())
}

func TestContext(t *testing.T) {
	f := newFixture(t, true)
	w := f.get(t, "/api/v1/context?q=silver&k=1")
	require.Equal(t, http.StatusOK, w.Code)
	var body contextResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "silver", body.Query)
	assert.True(t, strings.HasPrefix(body.Context, "Artifact: Silver crown (ID: 1, Period: Late Period)"), body.Context)
	assert.NotContains(t, body.Context, search.ContextSeparator)
}

func TestArtifact(t *testing.T) {
	f := newFixture(t, true)

	w := f.get(t, "/api/v1/artifacts/3")
	require.Equal(t, http.StatusOK, w.Code)
	var item models.Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&item))
	assert.Equal(t, "Stone tablet", item.Title)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/artifacts/99").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/artifacts/abc").Code)
}

func TestArtifactContext(t *testing.T) {
	f := newFixture(t, true)

	w := f.get(t, "/api/v1/artifacts/2/context")
	require.Equal(t, http.StatusOK, w.Code)
	var body contextResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, int64(2), body.ArtifactID)
	assert.Contains(t, body.Context, "Artifact: Bronze lamp (ID: 2)")
	assert.Contains(t, body.Context, "Period: Unknown")

	w = f.get(t, "/api/v1/artifacts/99/context")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, search.NoContext, body.Context)

	assert.Equal(t, 0, f.embedder.Calls(), "context by id must not embed")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.runs.CreateRun(context.Background(), &models.EvalRun{Kind: "retrieval", K: 3}))

	w := f.get(t, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	var s cli.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	assert.Equal(t, 3, s.Items)
	assert.Equal(t, 3, s.IndexSize)
	assert.Equal(t, 4, s.Dimensions)
	assert.Equal(t, 1, s.Runs)
	require.NotNil(t, s.DiskUsageBytes)
	assert.Greater(t, *s.DiskUsageBytes, int64(0))
	require.NotNil(t, s.Config)
	assert.Equal(t, config.ProviderHashing, s.Config.EmbeddingProvider)
}

func TestStatus_notBuilt(t *testing.T) {
	f := newFixture(t, false)
	w := f.get(t, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	var s cli.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	assert.Equal(t, 0, s.Items)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.runs.CreateRun(ctx, &models.EvalRun{Kind: "retrieval", K: 3, Metrics: map[string]float64{"Recall@1": 1}}))

	w := f.get(t, "/api/v1/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs []*models.EvalRun `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "retrieval", body.Runs[0].Kind)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/runs?limit=-1").Code)
}

func TestListRuns_disabled(t *testing.T) {
	f := newFixture(t, false)
	srv := NewServer(f.srv.retriever, nil, f.srv.config, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
