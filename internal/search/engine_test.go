package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/indexer"
	"github.com/hyperjump/museai/internal/models"
)

var museumVocab = map[string]int{
	"silver": 0, "crown": 0,
	"bronze": 1, "lamp": 1,
	"stone": 2, "tablet": 2,
}

func museumItems() []*models.Item {
	return []*models.Item{
		{ID: 1, Title: "Silver crown", ShortLabel: "royal headdress", Description: "A silver crown.", Period: "Late Period", Location: "Hall A", Material: "Silver"},
		{ID: 2, Title: "Bronze lamp", ShortLabel: "oil lamp", Description: "A bronze lamp."},
		{ID: 3, Title: "Stone tablet", ShortLabel: "inscribed tablet", Description: "A stone tablet."},
	}
}

func testPaths(t *testing.T) artifact.Paths {
	dir := t.TempDir()
	return artifact.Paths{Index: filepath.Join(dir, "items.index"), Metadata: filepath.Join(dir, "items.db")}
}

// buildMuseum builds artifacts with one embedder and returns a retriever using
// a separate embedder, so tests can count query-time embed calls.
func buildMuseum(t *testing.T, items []*models.Item) (*Retriever, *embedding.KeywordEmbedder, artifact.Paths) {
	t.Helper()
	paths := testPaths(t)
	_, err := indexer.NewIndexer(embedding.NewKeywordEmbedder(3, museumVocab), paths).Build(context.Background(), items)
	require.NoError(t, err)
	emb := embedding.NewKeywordEmbedder(3, museumVocab)
	return NewRetriever(emb, paths, WithLogger(zaptest.NewLogger(t))), emb, paths
}

func TestRetrieve_Order(t *testing.T) {
	r, emb, _ := buildMuseum(t, museumItems())
	ctx := context.Background()

	res, err := r.Retrieve(ctx, "silver crown", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.IDs())
	for i := 1; i < len(res.Hits); i++ {
		assert.LessOrEqual(t, res.Hits[i-1].Score, res.Hits[i].Score)
		assert.Equal(t, i+1, res.Hits[i].Rank)
	}
	assert.Equal(t, "Silver crown", res.Hits[0].Title)
	assert.Equal(t, 1, emb.Calls())

	res, err = r.Retrieve(ctx, "  lamp ", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.IDs())
	assert.Equal(t, "lamp", res.Query)
}

func TestRetrieve_KLargerThanCatalog(t *testing.T) {
	r, _, _ := buildMuseum(t, museumItems())
	res, err := r.Retrieve(context.Background(), "tablet", 10)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3)
	assert.Equal(t, int64(3), res.Hits[0].ID)
}

func TestRetrieve_InvalidQuery(t *testing.T) {
	r, emb, _ := buildMuseum(t, museumItems())
	_, err := r.Retrieve(context.Background(), "  ", 3)
	assert.Error(t, err)
	_, err = r.Retrieve(context.Background(), "crown", 0)
	assert.Error(t, err)
	assert.Equal(t, 0, emb.Calls())
}

func TestRetrieve_MissingArtifactBeforeBuild(t *testing.T) {
	emb := embedding.NewKeywordEmbedder(3, museumVocab)
	paths := testPaths(t)
	r := NewRetriever(emb, paths)

	_, err := r.Retrieve(context.Background(), "silver crown", 3)
	var missing *artifact.MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, artifact.Index, missing.Artifact)
	assert.Equal(t, paths.Index, missing.Path)
	assert.Equal(t, 0, emb.Calls())

	_, err = r.BuildContextForArtifactID(context.Background(), 1)
	assert.ErrorIs(t, err, artifact.ErrMissingArtifact)
}

func TestBuildContextForArtifactID_NeverEmbeds(t *testing.T) {
	r, emb, _ := buildMuseum(t, museumItems())
	ctx := context.Background()

	got, err := r.BuildContextForArtifactID(ctx, 2)
	require.NoError(t, err)
	want := "Artifact: Bronze lamp (ID: 2)\nPeriod: Unknown\nLocation: Unknown\nMaterial: Unknown\nDescription: A bronze lamp.\n"
	assert.Equal(t, want, got)

	got, err = r.BuildContextForArtifactID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, NoContext, got)

	assert.Equal(t, 0, emb.Calls())
}

func TestBuildContextForQuery(t *testing.T) {
	r, _, _ := buildMuseum(t, museumItems())

	got, err := r.BuildContextForQuery(context.Background(), "silver crown", 2)
	require.NoError(t, err)
	want := "Artifact: Silver crown (ID: 1, Period: Late Period)\nLocation: Hall A\nMaterial: Silver\nDescription: A silver crown.\n" +
		ContextSeparator +
		"Artifact: Bronze lamp (ID: 2, Period: Unknown)\nLocation: Unknown\nMaterial: Unknown\nDescription: A bronze lamp.\n"
	assert.Equal(t, want, got)
}

func TestFormatQueryContext_Empty(t *testing.T) {
	assert.Equal(t, "", FormatQueryContext(nil))
}

func TestItem(t *testing.T) {
	r, _, _ := buildMuseum(t, museumItems())
	it, err := r.Item(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Stone tablet", it.Title)

	_, err = r.Item(context.Background(), 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReload(t *testing.T) {
	r, _, paths := buildMuseum(t, museumItems())
	ctx := context.Background()

	res, err := r.Retrieve(ctx, "stone", 5)
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)

	_, err = indexer.NewIndexer(embedding.NewKeywordEmbedder(3, museumVocab), paths).Build(ctx, museumItems()[:2])
	require.NoError(t, err)

	res, err = r.Retrieve(ctx, "stone", 5)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 3, "snapshot is kept until Reload")

	require.NoError(t, r.Reload(ctx))
	res, err = r.Retrieve(ctx, "stone", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.IDs())
}
