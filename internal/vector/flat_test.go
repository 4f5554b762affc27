package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{0, 0},
		{3, 4},
		{1, 1},
		{10, 0},
	}
	if err := idx.Add(ctx, []int64{10, 20, 30, 40}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 4 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	// distances from (1,0): (0,0)=1, (3,4)=20, (1,1)=1, (10,0)=81
	wantPos := []int{0, 2, 1}
	wantDist := []float64{1, 1, 20}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Position != wantPos[i] || r.Distance != wantDist[i] {
			t.Errorf("result %d = {pos %d, dist %v}, want {pos %d, dist %v}", i, r.Position, r.Distance, wantPos[i], wantDist[i])
		}
	}
	if results[0].ID != 10 || results[1].ID != 30 {
		t.Errorf("ids = %d, %d", results[0].ID, results[1].ID)
	}
}

func TestFlatIndex_SearchKLargerThanSize(t *testing.T) {
	idx, _ := NewFlatIndex(0)
	ctx := context.Background()
	if err := idx.Add(ctx, []int64{1, 2}, [][]float32{{1, 0, 0}, {0, 1, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Dimensions() != 3 {
		t.Errorf("Dimensions=%d, want inferred 3", idx.Dimensions())
	}
	results, err := idx.Search(ctx, []float32{0, 1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected all 2 results, got %d", len(results))
	}
	if results[0].ID != 2 || results[0].Distance != 0 {
		t.Errorf("top result = %+v", results[0])
	}
}

func TestFlatIndex_SearchAscendingMatchesBruteForce(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	vecs := [][]float32{{5, 5}, {-1, 2}, {0.5, 0.5}, {2, -3}, {0, 0}, {4, 1}}
	ids := []int64{1, 2, 3, 4, 5, 6}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	q := []float32{1, 1}
	for k := 1; k <= len(vecs)+1; k++ {
		results, err := idx.Search(ctx, q, k)
		if err != nil {
			t.Fatal(err)
		}
		want := k
		if want > len(vecs) {
			want = len(vecs)
		}
		if len(results) != want {
			t.Fatalf("k=%d: got %d results", k, len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Errorf("k=%d: results not ascending at %d", k, i)
			}
		}
		for _, r := range results {
			if r.Distance != SquaredL2(q, vecs[r.Position]) {
				t.Errorf("k=%d: position %d distance %v", k, r.Position, r.Distance)
			}
		}
	}
}

func TestFlatIndex_NotBuilt(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	if !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Search on empty index: got %v, want ErrNotBuilt", err)
	}
	if err := idx.Save(filepath.Join(t.TempDir(), "x.idx")); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Save on empty index: got %v, want ErrNotBuilt", err)
	}
}

func TestFlatIndex_AddOnce(t *testing.T) {
	idx, _ := NewFlatIndex(1)
	ctx := context.Background()
	if err := idx.Add(ctx, []int64{1}, [][]float32{{1}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, []int64{2}, [][]float32{{2}}); !errors.Is(err, ErrAlreadyBuilt) {
		t.Errorf("second Add: got %v, want ErrAlreadyBuilt", err)
	}
}

func TestFlatIndex_AddValidation(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewFlatIndex(2)
	if err := idx.Add(ctx, []int64{1, 2}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := idx.Add(ctx, []int64{1}, [][]float32{{1, 0, 0}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("failed Add must leave index empty, size %d", idx.Size())
	}
	if _, err := NewFlatIndex(-1); err == nil {
		t.Error("expected error for negative dimensions")
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "artifacts.idx")
	idx, _ := NewFlatIndex(3)
	if err := idx.Add(ctx, []int64{7, 8}, [][]float32{{1, 2, 3}, {-4, 5.5, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewFlatIndex(0)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 || loaded.Dimensions() != 3 {
		t.Fatalf("loaded size=%d dim=%d", loaded.Size(), loaded.Dimensions())
	}
	ids := loaded.IDs()
	if ids[0] != 7 || ids[1] != 8 {
		t.Errorf("ids = %v", ids)
	}
	v := loaded.Vector(1)
	if v[0] != -4 || v[1] != 5.5 || v[2] != 0 {
		t.Errorf("vector 1 = %v", v)
	}
	results, err := loaded.Search(ctx, []float32{-4, 5.5, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != 8 || results[0].Distance != 0 {
		t.Errorf("search after load = %+v", results[0])
	}
}

func TestFlatIndex_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewFlatIndex(0)
	if err := idx.Load(filepath.Join(dir, "missing.idx")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v, want os.ErrNotExist", err)
	}

	garbage := filepath.Join(dir, "garbage.idx")
	if err := os.WriteFile(garbage, []byte("not an index"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(garbage); !errors.Is(err, ErrCorrupt) {
		t.Errorf("garbage file: got %v, want ErrCorrupt", err)
	}

	good := filepath.Join(dir, "good.idx")
	src, _ := NewFlatIndex(2)
	_ = src.Add(context.Background(), []int64{1, 2}, [][]float32{{1, 1}, {2, 2}})
	if err := src.Save(good); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(good)
	truncated := filepath.Join(dir, "truncated.idx")
	if err := os.WriteFile(truncated, data[:len(data)-3], 0600); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(truncated); !errors.Is(err, ErrCorrupt) {
		t.Errorf("truncated file: got %v, want ErrCorrupt", err)
	}

	wrongDim, _ := NewFlatIndex(5)
	if err := wrongDim.Load(good); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("dimension mismatch: got %v", err)
	}
}
