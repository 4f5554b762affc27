package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/museai/internal/indexer"
)

// Builder rebuilds the artifacts from a catalog file.
type Builder interface {
	BuildFromFile(ctx context.Context, path string) (*indexer.BuildResult, error)
}

// Reloader swaps in freshly built artifacts.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Rebuilder runs a full rebuild and reload for each catalog change. Rebuilds
// never overlap. A failed build leaves the previous artifacts and the loaded
// snapshot in place. A change that leaves the catalog bytes identical to the
// last successful build is skipped.
type Rebuilder struct {
	ctx      context.Context
	builder  Builder
	reloader Reloader // optional
	logger   *zap.Logger

	mu      sync.Mutex
	builds  int
	errs    int
	digests map[string]string // catalog path -> content digest of the last build
}

// NewRebuilder creates a rebuilder. reloader may be nil when nothing serves
// queries from the artifacts in this process.
func NewRebuilder(ctx context.Context, builder Builder, reloader Reloader, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{ctx: ctx, builder: builder, reloader: reloader, logger: logger, digests: make(map[string]string)}
}

// OnChange is a Watcher callback.
func (r *Rebuilder) OnChange(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	key := filepath.Clean(path)
	digest, derr := CatalogDigest(path)
	if derr == nil && r.digests[key] == digest {
		r.logger.Debug("catalog unchanged; skipping rebuild", zap.String("catalog", path))
		return
	}
	res, err := r.builder.BuildFromFile(r.ctx, path)
	if err != nil {
		r.errs++
		r.logger.Error("catalog rebuild failed; keeping previous artifacts", zap.String("catalog", path), zap.Error(err))
		return
	}
	r.builds++
	if derr == nil {
		r.digests[key] = digest
	}
	r.logger.Info("catalog rebuilt",
		zap.String("catalog", path),
		zap.Int("items", res.Items),
		zap.Duration("duration", res.Duration))
	if r.reloader == nil {
		return
	}
	if err := r.reloader.Reload(r.ctx); err != nil {
		r.errs++
		r.logger.Error("reload after rebuild failed", zap.Error(err))
	}
}

// Stats returns the number of successful builds and of failures so far.
func (r *Rebuilder) Stats() (builds, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds, r.errs
}

// CatalogDigest returns a stable hex digest of the file's contents.
func CatalogDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
