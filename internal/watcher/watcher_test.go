package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/indexer"
	"github.com/hyperjump/museai/internal/search"
)

type changeRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (c *changeRecorder) onChange(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
}

func (c *changeRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func startWatcher(t *testing.T, files []string, onChange func(string)) *Watcher {
	t.Helper()
	w := NewWatcher(files, onChange, WithDebounce(100*time.Millisecond), WithLogger(zaptest.NewLogger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func TestWatcher_DebouncesBurstOfWrites(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "artifacts.csv")
	require.NoError(t, writeFile(catalog, "artifact_id\n"))

	rec := &changeRecorder{}
	startWatcher(t, []string{catalog}, rec.onChange)

	for i := 0; i < 5; i++ {
		require.NoError(t, writeFile(catalog, "artifact_id\n1\n"))
		time.Sleep(10 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, filepath.Clean(catalog), rec.paths[0])
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "artifacts.csv")
	require.NoError(t, writeFile(catalog, "artifact_id\n"))

	rec := &changeRecorder{}
	startWatcher(t, []string{catalog}, rec.onChange)

	require.NoError(t, writeFile(filepath.Join(dir, "notes.txt"), "x"))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestWatcher_RenameOverTriggers(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "artifacts.csv")
	require.NoError(t, writeFile(catalog, "artifact_id\n"))

	rec := &changeRecorder{}
	startWatcher(t, []string{catalog}, rec.onChange)

	tmp := filepath.Join(dir, ".artifacts.csv.tmp")
	require.NoError(t, writeFile(tmp, "artifact_id\n2\n"))
	require.NoError(t, os.Rename(tmp, catalog))
	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing", "artifacts.csv")}, nil)
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{filepath.Join(dir, "artifacts.csv")}, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.Len(t, w.Files(), 1)
}

var vocab = map[string]int{"silver": 0, "crown": 0, "bronze": 1, "lamp": 1}

func TestRebuilder_RebuildsAndReloads(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "artifacts.csv")
	paths := artifact.Paths{Index: filepath.Join(dir, "a.index"), Metadata: filepath.Join(dir, "a.db")}
	require.NoError(t, writeFile(catalog, "artifact_id,title,short_label,base_context\n1,Silver crown,crown,A silver crown.\n"))

	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	idx := indexer.NewIndexer(embedding.NewKeywordEmbedder(2, vocab), paths)
	_, err := idx.BuildFromFile(ctx, catalog)
	require.NoError(t, err)

	retriever := search.NewRetriever(embedding.NewKeywordEmbedder(2, vocab), paths)
	snap, err := retriever.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())

	rb := NewRebuilder(ctx, idx, retriever, logger)
	startWatcher(t, []string{catalog}, rb.OnChange)

	require.NoError(t, writeFile(catalog, "artifact_id,title,short_label,base_context\n1,Silver crown,crown,A silver crown.\n2,Bronze lamp,lamp,A bronze lamp.\n"))
	assert.Eventually(t, func() bool {
		builds, _ := rb.Stats()
		return builds == 1
	}, 3*time.Second, 20*time.Millisecond)

	res, err := retriever.Retrieve(ctx, "bronze lamp", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.IDs())

	// rewriting identical bytes is not a change
	require.NoError(t, writeFile(catalog, "artifact_id,title,short_label,base_context\n1,Silver crown,crown,A silver crown.\n2,Bronze lamp,lamp,A bronze lamp.\n"))
	time.Sleep(400 * time.Millisecond)
	builds, errs := rb.Stats()
	assert.Equal(t, 1, builds)
	assert.Zero(t, errs)
}

func TestCatalogDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, writeFile(a, "artifact_id\n1\n"))
	require.NoError(t, writeFile(b, "artifact_id\n1\n"))
	da, err := CatalogDigest(a)
	require.NoError(t, err)
	db, err := CatalogDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Contains(t, da, "sha256:")

	require.NoError(t, writeFile(b, "artifact_id\n2\n"))
	db, err = CatalogDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)

	_, err = CatalogDigest(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

type failingBuilder struct{}

func (failingBuilder) BuildFromFile(context.Context, string) (*indexer.BuildResult, error) {
	return nil, errors.New("boom")
}

type countingReloader struct{ n int }

func (c *countingReloader) Reload(context.Context) error {
	c.n++
	return nil
}

func TestRebuilder_BuildFailureSkipsReload(t *testing.T) {
	reloader := &countingReloader{}
	rb := NewRebuilder(context.Background(), failingBuilder{}, reloader, nil)
	rb.OnChange("/data/artifacts.csv")
	builds, errs := rb.Stats()
	assert.Equal(t, 0, builds)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, reloader.n)
}

func TestRebuilder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rb := NewRebuilder(ctx, failingBuilder{}, nil, nil)
	rb.OnChange("/data/artifacts.csv")
	builds, errs := rb.Stats()
	assert.Zero(t, builds)
	assert.Zero(t, errs)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
