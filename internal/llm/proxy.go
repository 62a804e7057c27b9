package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// proxyClient forwards generation requests through an HTTP proxy that holds
// the provider credentials.
type proxyClient struct {
	url        string
	model      string
	httpClient *http.Client
}

type proxyRequest struct {
	Endpoint string    `json:"endpoint"`
	Body     proxyBody `json:"body"`
}

type proxyBody struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// NewProxyClient creates a Generator that posts to the given proxy URL.
func NewProxyClient(url, model string) Generator {
	return &proxyClient{
		url:   url,
		model: model,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Generate posts the prompt to the proxy and decodes the provider response.
func (c *proxyClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	reqBody := proxyRequest{
		Endpoint: model,
		Body: proxyBody{
			Contents:         []Content{{Parts: []Part{{Text: req.Prompt}}}},
			GenerationConfig: req.Config,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(bodyBytes))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var out GenerationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
