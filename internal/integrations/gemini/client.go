package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/upstream"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-pro"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// generateRequest is the minimal request shape for generateContent.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type responsePart struct {
	Text *string `json:"text"`
}

type candidate struct {
	Content *struct {
		Parts []responsePart `json:"parts"`
	} `json:"content"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// Client calls the Gemini generateContent API.
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

func (c *Client) Name() string { return "gemini" }

// generateURL builds the endpoint for model. The key travels in the query
// string, so the result must never be logged unredacted.
func generateURL(baseURL, model, apiKey string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/v1beta")
	return base + "/v1beta/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

// Complete sends message as a single user turn and returns the text of the
// first part of the first candidate.
func (c *Client) Complete(ctx context.Context, apiKey, msg string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", errors.New("gemini: api key must not be empty")
	}

	raw, err := upstream.PostJSON(ctx, c.httpClient, generateURL(c.baseURL, c.model, apiKey), nil, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: msg}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w: %w", domain.ErrInvalidReply, err)
	}
	if len(payload.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in response: %w", domain.ErrInvalidReply)
	}
	cand := payload.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: candidate has no parts: %w", domain.ErrInvalidReply)
	}
	text := cand.Content.Parts[0].Text
	if text == nil || *text == "" {
		return "", fmt.Errorf("gemini: candidate part has no text: %w", domain.ErrInvalidReply)
	}
	return *text, nil
}
