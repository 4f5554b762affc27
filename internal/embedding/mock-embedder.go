package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/museai/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same
// embedding, and counts calls so tests can assert on remote traffic.
type MockEmbedder struct {
	dimensions int
	mu         sync.Mutex
	calls      int
	texts      int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) vector(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts++
	e.mu.Unlock()
	return e.vector(text), nil
}

// EmbedBatch embeds all texts as a single call.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	e.mu.Unlock()
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

// Calls returns how many Embed or EmbedBatch calls were made.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts returns how many texts were embedded in total.
func (e *MockEmbedder) Texts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.texts
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// KeywordEmbedder is a test embedder with hand-picked axes: each word found in
// vocab adds 1 to its axis, a small constant fills the last axis so no vector
// is zero, and the result is L2-normalized. Rankings are easy to predict.
type KeywordEmbedder struct {
	*MockEmbedder
	vocab map[string]int
}

// NewKeywordEmbedder maps each vocab word to an axis in [0, axes).
// Vectors have axes+1 dimensions.
func NewKeywordEmbedder(axes int, vocab map[string]int) *KeywordEmbedder {
	return &KeywordEmbedder{MockEmbedder: NewMockEmbedder(axes + 1), vocab: vocab}
}

func (e *KeywordEmbedder) keywordVector(text string) []float32 {
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(text) {
		if axis, ok := e.vocab[w]; ok && axis >= 0 && axis < e.dimensions-1 {
			emb[axis]++
		}
	}
	emb[e.dimensions-1] = 0.1
	utils.NormalizeL2(emb)
	return emb
}

// Embed returns the keyword vector for text.
func (e *KeywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts++
	e.mu.Unlock()
	return e.keywordVector(text), nil
}

// EmbedBatch embeds all texts as a single call.
func (e *KeywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	e.mu.Unlock()
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.keywordVector(text)
	}
	return embeddings, nil
}
