// Package indexer builds the vector index and metadata artifacts from a catalog.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/vector"
)

// Indexer embeds catalog items and persists the index/metadata pair.
type Indexer struct {
	embedder embedding.Embedder
	paths    artifact.Paths
	logger   *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer writing to paths.
func NewIndexer(embedder embedding.Embedder, paths artifact.Paths, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder: embedder,
		paths:    paths,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	Items      int
	Dimensions int
	Duration   time.Duration
	Paths      artifact.Paths
}

// BuildFromFile loads the catalog at path and builds from it.
func (idx *Indexer) BuildFromFile(ctx context.Context, path string) (*BuildResult, error) {
	items, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return idx.Build(ctx, items)
}

// Build embeds every item in a single batch call, inserts the vectors in
// catalog order, and commits the artifacts. Any failure before the commit
// leaves previously built artifacts untouched.
func (idx *Indexer) Build(ctx context.Context, items []*models.Item) (*BuildResult, error) {
	start := time.Now()
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}
	texts := make([]string, len(items))
	ids := make([]int64, len(items))
	for i, it := range items {
		texts[i] = it.SourceText()
		ids[i] = it.ID
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer embedding catalog", zap.Int("items", len(items)))
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(items) {
		return nil, fmt.Errorf("failed to generate embeddings: got %d vectors for %d items", len(embeddings), len(items))
	}
	vecIndex, err := vector.NewFlatIndex(0)
	if err != nil {
		return nil, err
	}
	if err := vecIndex.Add(ctx, ids, embeddings); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := artifact.Commit(ctx, idx.paths, vecIndex, items); err != nil {
		return nil, fmt.Errorf("failed to persist artifacts: %w", err)
	}
	res := &BuildResult{
		Items:      len(items),
		Dimensions: vecIndex.Dimensions(),
		Duration:   time.Since(start),
		Paths:      idx.paths,
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer build complete",
			zap.Int("items", res.Items),
			zap.Int("dimensions", res.Dimensions),
			zap.Duration("duration", res.Duration))
	}
	return res, nil
}
