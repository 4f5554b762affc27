// Package search provides the retriever: nearest-neighbor lookup over the built
// index joined to catalog metadata, and grounding-context assembly.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/vector"
)

// Retriever answers queries against the built artifacts. Artifacts are loaded
// on first use and can be swapped with Reload. Safe for concurrent use.
type Retriever struct {
	embedder embedding.Embedder
	paths    artifact.Paths
	logger   *zap.Logger // optional

	mu   sync.RWMutex
	snap *artifact.Snapshot
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithSnapshot uses an already loaded snapshot instead of reading from disk.
func WithSnapshot(s *artifact.Snapshot) Option {
	return func(r *Retriever) { r.snap = s }
}

// NewRetriever creates a retriever. embedder is usually an
// *embedding.CachedEmbedder so repeated queries hit the cache.
func NewRetriever(embedder embedding.Embedder, paths artifact.Paths, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		paths:    paths,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the loaded artifacts, loading them on first call.
func (r *Retriever) Snapshot(ctx context.Context) (*artifact.Snapshot, error) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil {
		return r.snap, nil
	}
	snap, err := artifact.Open(ctx, r.paths)
	if err != nil {
		return nil, err
	}
	r.snap = snap
	if r.logger != nil {
		r.logger.Debug("retriever artifacts loaded", zap.Int("items", snap.Len()), zap.String("index", r.paths.Index))
	}
	return snap, nil
}

// Reload reads the artifacts from disk and replaces the current snapshot.
// On error the previous snapshot stays in place.
func (r *Retriever) Reload(ctx context.Context) error {
	snap, err := artifact.Open(ctx, r.paths)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debug("retriever artifacts reloaded", zap.Int("items", snap.Len()))
	}
	return nil
}

// Retrieve embeds text once, searches the index, and joins each hit to its
// metadata row. Results are in ascending distance order, ties broken by index
// position, and the distance is reported as the score.
func (r *Retriever) Retrieve(ctx context.Context, text string, k int) (*models.RetrievalResult, error) {
	query := models.Query{Text: text, K: k}
	if err := ProcessQuery(&query); err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	queryEmbedding, err := r.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := snap.Index.Search(ctx, queryEmbedding, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	result := &models.RetrievalResult{
		Query: query.Text,
		K:     query.K,
		Hits:  make([]models.ScoredItem, 0, len(hits)),
	}
	for i, h := range hits {
		item, ok := snap.ItemAt(h.Position)
		if !ok {
			return nil, fmt.Errorf("%w: index position %d has no metadata row", vector.ErrCorrupt, h.Position)
		}
		result.Hits = append(result.Hits, models.ScoredItem{
			Item:  *item,
			Score: h.Distance,
			Rank:  i + 1,
		})
	}
	if r.logger != nil {
		r.logger.Debug("retriever query", zap.String("query", query.Text), zap.Int("k", query.K), zap.Int64s("ids", result.IDs()))
	}
	return result, nil
}

// Item returns the catalog item with id, or an error wrapping models.ErrNotFound.
func (r *Retriever) Item(ctx context.Context, id int64) (*models.Item, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := snap.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("artifact %d: %w", id, models.ErrNotFound)
	}
	return item, nil
}

// BuildContextForQuery retrieves the top k items and formats them as context
// blocks in rank order. It returns NoContext when nothing matches.
func (r *Retriever) BuildContextForQuery(ctx context.Context, text string, k int) (string, error) {
	result, err := r.Retrieve(ctx, text, k)
	if err != nil {
		return "", err
	}
	if len(result.Hits) == 0 {
		return NoContext, nil
	}
	items := make([]*models.Item, len(result.Hits))
	for i := range result.Hits {
		items[i] = &result.Hits[i].Item
	}
	return FormatQueryContext(items), nil
}

// BuildContextForArtifactID formats the context for a known item id, for
// example one supplied by an image classifier. It never embeds or searches.
func (r *Retriever) BuildContextForArtifactID(ctx context.Context, id int64) (string, error) {
	item, err := r.Item(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return NoContext, nil
		}
		return "", err
	}
	return FormatArtifactContext(item), nil
}
