// Package artifact manages the persisted index/metadata pair produced by a build.
// The two files are always written, checked, and loaded together.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/storage"
	"github.com/hyperjump/museai/internal/vector"
)

// Artifact names used in MissingArtifactError.
const (
	Index    = "index"
	Metadata = "metadata"
)

// ErrMissingArtifact matches any *MissingArtifactError.
var ErrMissingArtifact = errors.New("missing artifact")

// MissingArtifactError reports that a build artifact does not exist.
type MissingArtifactError struct {
	Artifact string
	Path     string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s artifact not found at %s; run `museai build` to create it", e.Artifact, e.Path)
}

// Is reports whether target is ErrMissingArtifact.
func (e *MissingArtifactError) Is(target error) bool {
	return target == ErrMissingArtifact
}

// Paths locates the index and metadata files.
type Paths struct {
	Index    string
	Metadata string
}

// Check verifies both files exist, reporting the index first.
func (p Paths) Check() error {
	if err := exists(Index, p.Index); err != nil {
		return err
	}
	return exists(Metadata, p.Metadata)
}

func exists(name, path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return &MissingArtifactError{Artifact: name, Path: path}
	}
	return fmt.Errorf("stat %s artifact: %w", name, err)
}

// Snapshot is a loaded, read-only index/metadata pair.
type Snapshot struct {
	Index *vector.FlatIndex
	// Items[i] is the metadata for index position i.
	Items []*models.Item
	byID  map[int64]int
}

// NewSnapshot pairs an index with its items, verifying alignment.
func NewSnapshot(idx *vector.FlatIndex, items []*models.Item) (*Snapshot, error) {
	if idx.Size() != len(items) {
		return nil, fmt.Errorf("%w: index has %d rows, metadata has %d", vector.ErrCorrupt, idx.Size(), len(items))
	}
	ids := idx.IDs()
	byID := make(map[int64]int, len(items))
	for i, it := range items {
		if ids[i] != it.ID {
			return nil, fmt.Errorf("%w: position %d holds id %d in index but %d in metadata", vector.ErrCorrupt, i, ids[i], it.ID)
		}
		byID[it.ID] = i
	}
	return &Snapshot{Index: idx, Items: items, byID: byID}, nil
}

// ItemAt returns the item at an index position.
func (s *Snapshot) ItemAt(position int) (*models.Item, bool) {
	if position < 0 || position >= len(s.Items) {
		return nil, false
	}
	return s.Items[position], true
}

// Lookup returns the item with the given id.
func (s *Snapshot) Lookup(id int64) (*models.Item, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.Items[pos], true
}

// Len returns the number of items.
func (s *Snapshot) Len() int {
	return len(s.Items)
}

// Open loads the pair at p. A missing file yields *MissingArtifactError and a
// row-count or id mismatch yields vector.ErrCorrupt.
func Open(ctx context.Context, p Paths) (*Snapshot, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	idx, err := vector.NewFlatIndex(0)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(p.Index); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	store, err := storage.OpenSQLiteCatalogReadOnly(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer store.Close()
	items, err := store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return NewSnapshot(idx, items)
}

// Commit persists idx and items as a pair. Both files are first written to
// temporary siblings; the final paths are only replaced once both writes succeed.
// Metadata is installed before the index. If installing the index fails, the
// previous metadata is put back (or the new one removed on a first build) so
// new metadata never sits next to an old index.
func Commit(ctx context.Context, p Paths, idx *vector.FlatIndex, items []*models.Item) error {
	if _, err := NewSnapshot(idx, items); err != nil {
		return err
	}
	suffix := "." + uuid.NewString() + ".tmp"
	tmpIndex := tempPath(p.Index, suffix)
	tmpMeta := tempPath(p.Metadata, suffix)
	cleanup := func() {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpMeta)
	}

	if err := os.MkdirAll(filepath.Dir(p.Index), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	if err := idx.Save(tmpIndex); err != nil {
		cleanup()
		return fmt.Errorf("write index: %w", err)
	}
	store, err := storage.NewSQLiteCatalog(tmpMeta)
	if err != nil {
		cleanup()
		return fmt.Errorf("create metadata: %w", err)
	}
	if err := store.ReplaceItems(ctx, items); err != nil {
		_ = store.Close()
		cleanup()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := store.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close metadata: %w", err)
	}

	backup := tempPath(p.Metadata, suffix+".prev")
	hadPrevious := false
	if err := os.Rename(p.Metadata, backup); err == nil {
		hadPrevious = true
	} else if !os.IsNotExist(err) {
		cleanup()
		return fmt.Errorf("stage previous metadata: %w", err)
	}
	restore := func() {
		if hadPrevious {
			_ = os.Rename(backup, p.Metadata)
		} else {
			_ = os.Remove(p.Metadata)
		}
	}

	if err := os.Rename(tmpMeta, p.Metadata); err != nil {
		restore()
		cleanup()
		return fmt.Errorf("install metadata: %w", err)
	}
	if err := os.Rename(tmpIndex, p.Index); err != nil {
		restore()
		cleanup()
		return fmt.Errorf("install index: %w", err)
	}
	if hadPrevious {
		_ = os.Remove(backup)
	}
	return nil
}

func tempPath(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+suffix)
}
