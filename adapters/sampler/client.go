package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metabias/domain/model"
	"metabias/ports"
)

// Client posts sampler requests to an external MCMC service and decodes the
// draws. The service receives model.SamplerRequest as JSON on POST
// {BaseURL}/v1/sample and answers {"draws": {...}} or {"error": "..."}.
type Client struct {
	BaseURL string
	Timeout time.Duration

	httpClient *http.Client
}

var _ ports.PosteriorSampler = (*Client)(nil)

// NewClient creates a sampler client.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("missing sampler URL")
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type sampleResponse struct {
	Draws *model.Draws `json:"draws"`
	Error string       `json:"error"`
}

// Sample sends req and returns the draws.
func (c *Client) Sample(ctx context.Context, req model.SamplerRequest) (model.Draws, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return model.Draws{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/sample", bytes.NewReader(raw))
	if err != nil {
		return model.Draws{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.Draws{}, fmt.Errorf("sampler request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Draws{}, fmt.Errorf("read response: %w", err)
	}

	var decoded sampleResponse
	jsonErr := json.Unmarshal(respRaw, &decoded)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if jsonErr == nil && decoded.Error != "" {
			return model.Draws{}, fmt.Errorf("sampler http %d: %s", resp.StatusCode, decoded.Error)
		}
		return model.Draws{}, fmt.Errorf("sampler http %d: %s", resp.StatusCode, truncate(string(respRaw), 512))
	}
	if jsonErr != nil {
		return model.Draws{}, fmt.Errorf("unmarshal response: %w", jsonErr)
	}
	if decoded.Error != "" {
		return model.Draws{}, fmt.Errorf("sampler error: %s", decoded.Error)
	}
	if decoded.Draws == nil {
		return model.Draws{}, fmt.Errorf("sampler response missing draws")
	}
	return *decoded.Draws, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
