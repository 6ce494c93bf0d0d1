// Package ollama talks to an Ollama-compatible backend over HTTP for
// embeddings and chat completions.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"ragproxy/internal/domain"
)

// Config configures the backend client.
type Config struct {
	Host           string // base URL, e.g. http://localhost:11434
	EmbeddingModel string
	ChatModel      string
	Timeout        time.Duration // per-request bound for non-streaming calls
	MaxRetries     uint64        // extra attempts on transient failures; 0 disables retry
}

// Client calls the embeddings and chat endpoints of an Ollama backend.
type Client struct {
	host           string
	embeddingModel string
	chatModel      string
	maxRetries     uint64
	http           *http.Client
	// Streaming responses outlive any whole-request timeout; the stream
	// client bounds nothing itself and relies on context cancellation.
	stream *http.Client
}

// NewClient creates a backend client with bounded request timeouts.
func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "deepseek-r1:8b"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		host:           cfg.Host,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		maxRetries:     cfg.MaxRetries,
		http:           &http.Client{Timeout: t},
		stream:         &http.Client{},
	}
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

// ChatModel returns the configured chat model name.
func (c *Client) ChatModel() string { return c.chatModel }

// Host returns the backend base URL.
func (c *Client) Host() string { return c.host }

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests an embedding vector for the given text. A missing or
// empty vector in the response is an error, never a partial result.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	var vec []float64
	err := c.withRetry(ctx, func(ctx context.Context) error {
		payload, err := c.post(ctx, "/api/embeddings", embeddingRequest{
			Model:  c.embeddingModel,
			Prompt: text,
		})
		if err != nil {
			return err
		}
		var out embeddingResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			return fmt.Errorf("decode embedding response: %w", err)
		}
		if len(out.Embedding) == 0 {
			return errors.New("no embedding in response")
		}
		vec = out.Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

// Chat sends a non-streaming chat request and returns the backend's JSON
// response verbatim.
func (c *Client) Chat(ctx context.Context, messages []domain.Message) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.withRetry(ctx, func(ctx context.Context) error {
		payload, err := c.post(ctx, "/api/chat", chatRequest{
			Model:    c.chatModel,
			Messages: messages,
			Stream:   false,
		})
		if err != nil {
			return err
		}
		if !json.Valid(payload) {
			return errors.New("malformed chat response")
		}
		raw = payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// ChatStream sends a streaming chat request and returns the raw response
// body. The caller must close it; the stream is finite and cannot be
// restarted. No retry applies once the stream is open.
func (c *Client) ChatStream(ctx context.Context, messages []domain.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat stream request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat stream failed: %s: %s", resp.Status, payload)
	}
	return resp.Body, nil
}

// post issues a JSON POST and returns the response payload. Transport
// failures and 429/5xx statuses are marked retryable.
func (c *Client) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("backend request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read backend response: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retry.RetryableError(fmt.Errorf("backend returned %s: %s", resp.Status, payload))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned %s: %s", resp.Status, payload)
	}
	return payload, nil
}

func (c *Client) withRetry(ctx context.Context, task func(ctx context.Context) error) error {
	if c.maxRetries == 0 {
		return task(ctx)
	}
	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, b, task)
}
