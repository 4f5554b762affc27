package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/museai/pkg/utils"
)

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// SplitWords lowercases text and splits it on anything that is not a letter or digit.
func SplitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashingEmbedder is an offline bag-of-words embedder: each word increments the
// bucket chosen by its hash, and the result is L2-normalized. Texts sharing words
// land close together, which is enough for demos and smoke tests without a
// remote model.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder with the given number of buckets.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the hashed bag-of-words vector for text. Text without words
// yields a vector with a single bucket set so it is never zero-norm.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	words := SplitWords(text)
	for _, w := range words {
		emb[HashString(w)%e.dimensions]++
	}
	if len(words) == 0 {
		emb[0] = 1
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}
