package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// ClientConfig configures the HTTP agent client. The zero value is usable.
type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
}

// Client talks to remote agents over HTTP. It implements CardClient and
// Invoker.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP agent client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "hireplane"
	}

	return &Client{httpClient: httpClient, userAgent: userAgent}
}

// FetchCard retrieves and decodes the capability card at cardURL.
func (c *Client) FetchCard(ctx context.Context, cardURL string) (*Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create card request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("card fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("card fetch returned status %d: %s", resp.StatusCode, body)
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to parse card: %w", err)
	}
	if card.Endpoint == "" {
		return nil, fmt.Errorf("card at %s has no invocation endpoint", cardURL)
	}

	return &card, nil
}

// invokeRequest is the JSON envelope posted to the agent's endpoint.
type invokeRequest struct {
	Entrypoint string          `json:"entrypoint"`
	Input      json.RawMessage `json:"input,omitempty"`
}

// Invoke posts the input to the card's endpoint for the given entrypoint.
// When transport is non-nil it replaces the client's transport for this call,
// which is how payment-authorizing round trippers are attached.
func (c *Client) Invoke(ctx context.Context, card *Card, entrypointKey string, input json.RawMessage, transport http.RoundTripper) (*InvokeResult, error) {
	if card == nil {
		return nil, fmt.Errorf("nil card")
	}

	body, err := json.Marshal(invokeRequest{Entrypoint: entrypointKey, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, card.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	httpClient := c.httpClient
	if transport != nil {
		clone := *c.httpClient
		clone.Transport = transport
		httpClient = &clone
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invocation failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invocation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invocation returned status %d: %s", resp.StatusCode, respBody)
	}

	var result InvokeResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse invocation response: %w", err)
	}

	return &result, nil
}
