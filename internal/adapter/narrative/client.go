// Package narrative produces the prose sections of a county weather report,
// either by calling the narrative generation service or from built-in
// templates when no service is configured.
package narrative

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

// Client implements domain.NarrativeGenerator against the narrative service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a narrative service client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Generate posts the raw report and returns the generated prose.
func (c *Client) Generate(ctx context.Context, report domain.RawReport) (domain.NarrativeSet, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return domain.NarrativeSet{}, fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/narratives", bytes.NewReader(body))
	if err != nil {
		return domain.NarrativeSet{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NarrativeSet{}, fmt.Errorf("narrative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return domain.NarrativeSet{}, fmt.Errorf("narrative service error: status %d: %s", resp.StatusCode, msg)
	}

	var set domain.NarrativeSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return domain.NarrativeSet{}, fmt.Errorf("decode response: %w", err)
	}
	return set, nil
}
