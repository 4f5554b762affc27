// Package storage defines persistence interfaces for catalog metadata and evaluation runs.
package storage

import (
	"context"

	"github.com/hyperjump/museai/internal/models"
)

// CatalogStore persists catalog items in index order. The position of an item
// is the row of its vector in the index.
type CatalogStore interface {
	// ReplaceItems removes all rows and inserts items at positions 0..n-1.
	ReplaceItems(ctx context.Context, items []*models.Item) error
	// ListItems returns all items ordered by position.
	ListItems(ctx context.Context) ([]*models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	Count(ctx context.Context) (int64, error)

	Close() error
}

// RunStore records completed evaluation runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.EvalRun) error
	GetRun(ctx context.Context, id string) (*models.EvalRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.EvalRun, error)
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
