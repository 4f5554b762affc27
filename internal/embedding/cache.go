package embedding

import (
	"container/list"
	"sync"
)

// CacheStats counts cache lookups since the cache was created.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// EmbeddingCache maps exact input text to its embedding. A positive capacity
// bounds it with least-recently-used eviction; capacity <= 0 keeps every entry
// for the lifetime of the cache. Stored vectors are private copies and are
// never modified after Set.
type EmbeddingCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex

	hits, misses, evictions int64
}

type cacheEntry struct {
	text   string
	vector []float32
}

// NewEmbeddingCache creates a cache holding at most capacity entries.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for text and records a hit or a miss.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lookup(text)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// peek is Get without touching the counters.
func (c *EmbeddingCache) peek(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(text)
}

func (c *EmbeddingCache) lookup(text string) ([]float32, bool) {
	elem, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

// Set stores a copy of vector for text and returns the stored slice. An
// existing entry keeps its first vector, since an embedding is immutable once
// produced; that vector is returned instead.
func (c *EmbeddingCache) Set(text string, vector []float32) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[text]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).vector
	}
	stored := append([]float32(nil), vector...)
	c.entries[text] = c.lru.PushFront(&cacheEntry{text: text, vector: stored})

	for c.capacity > 0 && c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).text)
		c.evictions++
	}
	return stored
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *EmbeddingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.lru.Len(), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}
