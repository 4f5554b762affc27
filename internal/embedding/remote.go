package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values for RemoteEmbedder.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 30 * time.Second
)

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	// BaseURL is the API root; requests go to BaseURL + "/embeddings".
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	Model  string
	// Dimensions is the expected vector size; 0 means learn it from the first response.
	Dimensions int
	Timeout    time.Duration
	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint. A batch is sent
// as one request. It does not retry; wrap it in a CachedEmbedder for that.
type RemoteEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	mu         sync.Mutex
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewRemoteEmbedder creates a remote embedder, filling defaults for empty fields.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	e := &RemoteEmbedder{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return e
}

// Embed embeds a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in a single request and returns them in input order.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(out.Data), len(texts))
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for input %d", i)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		vecs[i] = v
	}
	if err := e.checkDimensions(len(vecs[0])); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *RemoteEmbedder) checkDimensions(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
		return nil
	}
	if n != e.dimensions {
		return fmt.Errorf("embedding dimension %d, expected %d", n, e.dimensions)
	}
	return nil
}

// Ping embeds a short probe text to verify the endpoint and credentials.
func (e *RemoteEmbedder) Ping(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping")
	return err
}

// Dimensions returns the configured or learned vector size.
func (e *RemoteEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// ModelName returns the embedding model name.
func (e *RemoteEmbedder) ModelName() string {
	return e.model
}

// Close releases resources.
func (e *RemoteEmbedder) Close() error {
	return nil
}
