package indexer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/table"
)

// Catalog column names.
const (
	ColArtifactID  = "artifact_id"
	ColTitle       = "title"
	ColShortLabel  = "short_label"
	ColBaseContext = "base_context"
	ColPeriod      = "period"
	ColLocation    = "location"
	ColMaterial    = "material"
)

// ErrEmptyCatalog is returned when the catalog has no item rows.
var ErrEmptyCatalog = errors.New("catalog has no items")

// LoadCatalog reads a CSV, XLSX or ODS catalog. Rows keep file order, which becomes
// index position order. Ids must be integers and unique.
func LoadCatalog(path string) ([]*models.Item, error) {
	tbl, err := table.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := tbl.RequireColumns(ColArtifactID, ColTitle, ColShortLabel, ColBaseContext); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	items, err := ParseCatalog(tbl)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return items, nil
}

// ParseCatalog converts table rows to items.
func ParseCatalog(tbl *table.Table) ([]*models.Item, error) {
	if tbl.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[int64]int, tbl.Len())
	items := make([]*models.Item, 0, tbl.Len())
	for _, rec := range tbl.Records() {
		id, err := strconv.ParseInt(rec.Get(ColArtifactID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid artifact_id %q", rec.Line, rec.Get(ColArtifactID))
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate artifact_id %d (first on line %d)", rec.Line, id, prev)
		}
		seen[id] = rec.Line
		items = append(items, &models.Item{
			ID:          id,
			Title:       Preprocess(rec.Get(ColTitle)),
			ShortLabel:  Preprocess(rec.Get(ColShortLabel)),
			Description: Preprocess(rec.Get(ColBaseContext)),
			Period:      Preprocess(rec.Get(ColPeriod)),
			Location:    Preprocess(rec.Get(ColLocation)),
			Material:    Preprocess(rec.Get(ColMaterial)),
		})
	}
	return items, nil
}
