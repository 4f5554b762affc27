// Package generate produces guide answers from a query and an optional grounding
// context through an OpenAI-compatible chat completion API.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
	DefaultTimeout  = 120 * time.Second
	DefaultLanguage = "en"
)

// AnswerRequest is one answer generation call. An empty Context produces an
// ungrounded answer; callers must not reuse context from earlier requests.
type AnswerRequest struct {
	Query    string
	Context  string
	Language string
}

// Generator answers visitor questions.
type Generator interface {
	GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req AnswerRequest) (string, error)

// GenerateAnswer calls f.
func (f Func) GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error) {
	return f(ctx, req)
}

// ChatConfig configures a ChatGenerator.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// ChatGenerator implements Generator with /chat/completions.
type ChatGenerator struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	limiter     *rate.Limiter
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatGenerator creates a chat generator, filling defaults for empty fields.
func NewChatGenerator(cfg ChatConfig) *ChatGenerator {
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
	g := &ChatGenerator{
		client:      client,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// GenerateAnswer sends the guide prompt for req and returns the trimmed reply.
func (g *ChatGenerator) GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	system, user := BuildPrompt(req)
	body, err := json.Marshal(chatCompletionRequest{
		Model: g.model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var chatResp chatCompletionResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("chat API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API error (status %d)", resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

const systemPrompt = `You are a multilingual museum guide. Answer in this language: %s.
If you are not sure, say so.`

const groundedPrompt = `Use the museum context below as your primary source.
Mark anything you add from outside the context with "[additional context]".

Museum context:
----------------
%s
----------------

Visitor question:
%s`

const ungroundedPrompt = `Visitor question:
%s`

// BuildPrompt returns the system and user messages for req.
func BuildPrompt(req AnswerRequest) (system, user string) {
	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	system = fmt.Sprintf(systemPrompt, lang)
	if strings.TrimSpace(req.Context) == "" {
		return system, fmt.Sprintf(ungroundedPrompt, req.Query)
	}
	return system, fmt.Sprintf(groundedPrompt, req.Context, req.Query)
}
