// Package renderer turns a generated report into its final document, either
// through the rendering service or with a local plain-text fallback when no
// service is configured.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/clima-scope/internal/domain"
)

// Client implements domain.DocumentRenderer against the rendering service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a rendering service client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Render posts the render request and returns the produced document's
// location and size.
func (c *Client) Render(ctx context.Context, renderReq domain.RenderRequest) (domain.RenderResult, error) {
	body, err := json.Marshal(renderReq)
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/render", bytes.NewReader(body))
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RenderResult{}, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return domain.RenderResult{}, fmt.Errorf("renderer error: status %d: %s", resp.StatusCode, msg)
	}

	var result domain.RenderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.RenderResult{}, fmt.Errorf("decode response: %w", err)
	}
	if result.FilePath == "" {
		return domain.RenderResult{}, fmt.Errorf("renderer returned no file path")
	}
	return result, nil
}
