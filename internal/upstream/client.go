// Package upstream performs the HTTP calls to the target provider: unary
// and streamed chat completions for the OpenAI-compatible providers, and
// a raw relay for the Anthropic passthrough provider.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3/packages/ssestream"

	"claudebridge/internal/openai"
	"claudebridge/internal/router"
)

// StatusError is a non-2xx upstream reply with its body captured for
// error translation.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// Client talks to one or more upstream providers over a shared transport.
type Client struct {
	httpClient *http.Client
}

// New builds a Client. Streaming responses can outlive any sane
// request timeout, so the client itself has none; callers bound unary
// calls through the request context.
func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) newChatRequest(ctx context.Context, route router.Route, body *openai.ChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+route.APIKey)
	return req, nil
}

// CreateChatCompletion performs a unary chat completion call.
func (c *Client) CreateChatCompletion(ctx context.Context, route router.Route, body *openai.ChatRequest) (*openai.ChatCompletion, error) {
	req, err := c.newChatRequest(ctx, route, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("decoding upstream response: %w", err)
	}
	return &completion, nil
}

// StreamChatCompletion starts a streamed chat completion call and returns
// the decoded chunk stream. The caller owns the stream and must Close it.
func (c *Client) StreamChatCompletion(ctx context.Context, route router.Route, body *openai.ChatRequest) (*ssestream.Stream[openai.ChatCompletionChunk], error) {
	req, err := c.newChatRequest(ctx, route, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}
	return ssestream.NewStream[openai.ChatCompletionChunk](ssestream.NewDecoder(resp), nil), nil
}

// RelayCountTokens forwards a raw count_tokens body to the passthrough
// provider. The caller owns the response body.
func (c *Client) RelayCountTokens(ctx context.Context, route router.Route, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.BaseURL+"/v1/messages/count_tokens", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", route.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return c.httpClient.Do(req)
}

// RelayMessages forwards a raw Anthropic Messages request body to the
// passthrough provider and returns the upstream response untouched. The
// caller owns the response body.
func (c *Client) RelayMessages(ctx context.Context, route router.Route, body []byte, stream bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", route.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return c.httpClient.Do(req)
}
