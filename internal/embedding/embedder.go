// Package embedding provides text embedding clients and the memoizing,
// retrying cache used in front of them.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector size, or 0 when only known after the first call.
	Dimensions() int
	Close() error
}

// Pinger is implemented by embedders that can check their endpoint without
// embedding real input.
type Pinger interface {
	Ping(ctx context.Context) error
}
