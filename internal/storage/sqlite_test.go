package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/museai/internal/models"
)

func testItems() []*models.Item {
	return []*models.Item{
		{ID: 30, Title: "Stone tablet", ShortLabel: "inscribed", Description: "A stone tablet.", Period: "Old Kingdom"},
		{ID: 10, Title: "Silver crown", ShortLabel: "royal", Description: "A silver crown.", Material: "Silver"},
		{ID: 20, Title: "Bronze lamp", ShortLabel: "oil lamp", Description: "A bronze lamp.", Location: "Hall B"},
	}
}

func TestSQLiteCatalog_PositionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "metadata.db")
	store, err := NewSQLiteCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.ReplaceItems(ctx, testItems()); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{30, 10, 20}
	if len(list) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: got id %d, want %d", i, list[i].ID, id)
		}
	}
	if list[0].Period != "Old Kingdom" || list[0].Material != "" {
		t.Errorf("optional fields not preserved: %+v", list[0])
	}

	n, err := store.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count: %v, %d", err, n)
	}
}

func TestSQLiteCatalog_ReplaceItems(t *testing.T) {
	store, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	_ = store.ReplaceItems(ctx, testItems())
	if err := store.ReplaceItems(ctx, testItems()[:1]); err != nil {
		t.Fatal(err)
	}
	n, _ := store.Count(ctx)
	if n != 1 {
		t.Errorf("expected 1 item after replace, got %d", n)
	}

	dup := []*models.Item{{ID: 1, Title: "a"}, {ID: 1, Title: "b"}}
	if err := store.ReplaceItems(ctx, dup); err == nil {
		t.Error("expected error for duplicate artifact ids")
	}
	n, _ = store.Count(ctx)
	if n != 1 {
		t.Errorf("failed replace must roll back, got %d items", n)
	}
}

func TestSQLiteCatalog_GetItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	store, err := NewSQLiteCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = store.ReplaceItems(ctx, testItems())
	_ = store.Close()

	ro, err := OpenSQLiteCatalogReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	got, err := ro.GetItem(ctx, 20)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Bronze lamp" || got.Location != "Hall B" {
		t.Errorf("got %+v", got)
	}
	if _, err := ro.GetItem(ctx, 99); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := ro.ReplaceItems(ctx, testItems()); err == nil {
		t.Error("expected write to fail on read-only catalog")
	}
}

func TestOpenSQLiteCatalogReadOnly_Missing(t *testing.T) {
	if _, err := OpenSQLiteCatalogReadOnly(filepath.Join(t.TempDir(), "none.db")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSQLiteRuns(t *testing.T) {
	store, err := NewSQLiteRuns(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := &models.EvalRun{Kind: "retrieval", K: 3, Total: 4, Skipped: 1,
		Metrics: map[string]float64{"Recall@1": 0.5}, FinishedAt: base}
	if err := store.CreateRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Error("ID should be assigned")
	}
	second := &models.EvalRun{Kind: "grounding", K: 1, Total: 2,
		Metrics: map[string]float64{"improved_fraction": 1}, FinishedAt: base.Add(time.Hour)}
	if err := store.CreateRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != "retrieval" || got.Skipped != 1 || got.Metrics["Recall@1"] != 0.5 {
		t.Errorf("got %+v", got)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Errorf("expected newest first, got %d runs", len(runs))
	}
	if n, err := store.CountRuns(ctx); err != nil || n != 2 {
		t.Errorf("CountRuns = %d, %v; want 2", n, err)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
