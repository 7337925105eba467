package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/upstream"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the chat completions endpoint.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// chatResponse keeps content as a pointer so an absent field is
// distinguishable from a decoded zero value.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the DeepSeek chat completions API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(baseURL); v != "" {
			c.baseURL = v
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(model); v != "" {
			c.model = v
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "deepseek" }

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Complete sends message as a single user turn and returns the first choice.
func (c *Client) Complete(ctx context.Context, apiKey, msg string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("deepseek: api key must not be empty")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	raw, err := upstream.PostJSON(ctx, c.httpClient, chatURL(c.baseURL), header, chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: msg}},
	})
	if err != nil {
		return "", fmt.Errorf("deepseek: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("deepseek: decode response: %w: %w", domain.ErrInvalidReply, err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("deepseek: no choices in response: %w", domain.ErrInvalidReply)
	}
	content := payload.Choices[0].Message.Content
	if content == nil || *content == "" {
		return "", fmt.Errorf("deepseek: choice has no content: %w", domain.ErrInvalidReply)
	}
	return *content, nil
}
