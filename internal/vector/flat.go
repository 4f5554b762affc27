package vector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// IndexType is the type identifier reported for FlatIndex.
const IndexType = "flat-l2"

var fileMagic = [8]byte{'M', 'U', 'S', 'E', 'F', 'L', 'A', 'T'}

const fileVersion uint32 = 1

// FlatIndex is an exact index using brute-force squared Euclidean distance.
// It is populated once by a single Add and read-only afterwards.
type FlatIndex struct {
	dimensions int
	ids        []int64
	vectors    [][]float32
	built      bool
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index. A dimension of 0 means the dimension
// is taken from the first Add or Load.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return IndexType
}

// Add inserts all vectors in order; position i holds vectors[i] for ids[i].
func (f *FlatIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to add")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.built {
		return ErrAlreadyBuilt
	}
	dim := f.dimensions
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
		vec := make([]float32, dim)
		copy(vec, v)
		stored[i] = vec
	}
	f.dimensions = dim
	f.ids = append([]int64(nil), ids...)
	f.vectors = stored
	f.built = true
	return nil
}

// Search returns the min(k, Size()) nearest vectors by squared Euclidean distance,
// ascending. Equal distances keep index position order.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.built {
		return nil, ErrNotBuilt
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	results := make([]*VectorResult, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = &VectorResult{Position: i, ID: f.ids[i], Distance: SquaredL2(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Save writes the index to path, creating the directory if needed. Format:
// magic (8), version (4), dimension (4), n (4), then per row: id (8), vector (dimension*4).
// All integers are little-endian.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.built {
		return ErrNotBuilt
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := f.encode(w); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	return file.Close()
}

func (f *FlatIndex) encode(w io.Writer) error {
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	header := []uint32{fileVersion, uint32(f.dimensions), uint32(len(f.ids))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, id := range f.ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(f.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// A missing file is reported as an error wrapping os.ErrNotExist.
func (f *FlatIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	r := bytes.NewReader(data)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != fileMagic {
		return fmt.Errorf("%w: bad header in %s", ErrCorrupt, path)
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	version, dim, n := header[0], int(header[1]), int(header[2])
	if version != fileVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if f.dimensions != 0 && dim != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	if n == 0 || dim == 0 {
		return fmt.Errorf("%w: index file holds no vectors", ErrCorrupt)
	}
	rowSize := 8 + dim*4
	if r.Len() != n*rowSize {
		return fmt.Errorf("%w: expected %d rows of %d bytes, have %d bytes", ErrCorrupt, n, rowSize, r.Len())
	}
	ids := make([]int64, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, dim*4)
	for i := 0; i < n; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("%w: read id: %v", ErrCorrupt, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%w: read vector: %v", ErrCorrupt, err)
		}
		ids = append(ids, id)
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dimensions = dim
	f.ids = ids
	f.vectors = vectors
	f.built = true
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimensions returns the vector dimension, or 0 before the first Add or Load.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimensions
}

// IDs returns a copy of the item ids in index position order.
func (f *FlatIndex) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]int64(nil), f.ids...)
}

// Vector returns a copy of the vector at position, or nil when out of range.
func (f *FlatIndex) Vector(position int) []float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if position < 0 || position >= len(f.vectors) {
		return nil
	}
	return append([]float32(nil), f.vectors[position]...)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
