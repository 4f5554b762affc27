package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/museai/pkg/utils"
	"go.uber.org/zap"
)

// ErrEmbeddingUnavailable is returned when the remote embedder kept failing
// after every retry. Callers must abort rather than substitute a vector.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// CachedEmbedder memoizes a remote Embedder by exact text and retries failed
// remote calls with exponential backoff. It issues at most one successful remote
// request per distinct text for its lifetime (or until LRU eviction when a
// capacity is set). One CachedEmbedder is created per evaluation run.
type CachedEmbedder struct {
	remote  Embedder
	cache   *EmbeddingCache
	policy  utils.RetryPolicy
	logger  *zap.Logger
	fetchMu sync.Mutex
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithCapacity bounds the cache with LRU eviction. Zero or negative means unbounded.
func WithCapacity(n int) CacheOption {
	return func(c *CachedEmbedder) { c.cache = NewEmbeddingCache(n) }
}

// WithRetryPolicy replaces the default policy of 5 attempts with 2^attempt second waits.
func WithRetryPolicy(p utils.RetryPolicy) CacheOption {
	return func(c *CachedEmbedder) { c.policy = p }
}

// WithLogger sets a logger for retry warnings and cache debug output.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) { c.logger = l }
}

// NewCachedEmbedder wraps remote with an unbounded cache and the default retry policy.
func NewCachedEmbedder(remote Embedder, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		remote: remote,
		cache:  NewEmbeddingCache(0),
		policy: utils.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedWithCache returns the embedding for text, calling the remote embedder
// only on a cache miss. The returned slice is shared with the cache and must
// not be modified.
func (c *CachedEmbedder) EmbedWithCache(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	if v, ok := c.cache.peek(text); ok {
		return v, nil
	}
	vecs, err := c.fetch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return c.cache.Set(text, vecs[0]), nil
}

// Embed is EmbedWithCache.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.EmbedWithCache(ctx, text)
}

// EmbedBatch serves cached texts from memory and fetches the distinct misses in
// one remote batch call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	var misses []string
	seen := make(map[string]bool)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		if !seen[t] {
			seen[t] = true
			misses = append(misses, t)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}
	vecs, err := c.fetch(ctx, misses)
	if err != nil {
		return nil, err
	}
	fetched := make(map[string][]float32, len(misses))
	for i, t := range misses {
		fetched[t] = c.cache.Set(t, vecs[i])
	}
	for i, t := range texts {
		if out[i] == nil {
			out[i] = fetched[t]
		}
	}
	return out, nil
}

func (c *CachedEmbedder) fetch(ctx context.Context, texts []string) ([][]float32, error) {
	policy := c.policy
	if c.logger != nil && policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("embedding request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Int("texts", len(texts)),
				zap.Error(err),
			)
		}
	}
	vecs, err := utils.Retry(ctx, policy, func(ctx context.Context) ([][]float32, error) {
		vecs, err := c.remote.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		return vecs, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q: %w", ErrEmbeddingUnavailable, utils.Truncate(texts[0], 60), err)
	}
	if c.logger != nil {
		c.logger.Debug("embedding cache miss filled", zap.Int("texts", len(texts)))
	}
	return vecs, nil
}

// Len returns the number of cached texts.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Stats returns the cache counters.
func (c *CachedEmbedder) Stats() CacheStats {
	return c.cache.Stats()
}

// Dimensions returns the remote embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.remote.Dimensions()
}

// Close closes the remote embedder.
func (c *CachedEmbedder) Close() error {
	return c.remote.Close()
}
