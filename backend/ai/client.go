// Package ai talks to an OpenAI-compatible chat-completions API. It backs the
// reading assistant, book recommendations and the optional answer judge.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"memorymaze/backend/config"
	"memorymaze/backend/utils"

	"github.com/goccy/go-json"
)

// ErrNoAPIKey is returned when no provider key is configured.
var ErrNoAPIKey = errors.New("openai api key not configured")

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

// StatusCode returns the provider status carried by err, 0 if none.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Content string
	Model   string
}

// Completer produces one chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	keys       *KeyRing
	log        *utils.Logger

	maxAttempts int
	backoff     time.Duration
}

func NewClient(cfg *config.Config, keys *KeyRing, log *utils.Logger) *Client {
	return &Client{
		baseURL:     cfg.OpenAIBaseURL,
		model:       cfg.OpenAIModel,
		httpClient:  &http.Client{Timeout: cfg.OpenAITimeout},
		keys:        keys,
		log:         log.With("service", "OpenAIClient"),
		maxAttempts: 2,
		backoff:     time.Second,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the request, retrying on 429 with exponential delay. Each
// attempt draws a key from the ring.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if c.keys == nil || c.keys.Len() == 0 {
		return nil, ErrNoAPIKey
	}
	body := chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		key, _ := c.keys.Next()
		out, err := c.doOnce(ctx, key, body)
		if err == nil {
			return out, nil
		}

		status := StatusCode(err)
		if status == http.StatusTooManyRequests || status == http.StatusUnauthorized || status >= 500 {
			c.keys.MarkError(key)
		}
		if status != http.StatusTooManyRequests || attempt >= c.maxAttempts {
			return nil, err
		}

		c.log.Warn("OpenAI request rate limited, retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"sleep", backoff.String(),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, key string, body chatRequest) (*Completion, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("openai decode error: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai response has no choices")
	}
	return &Completion{Content: out.Choices[0].Message.Content, Model: out.Model}, nil
}
