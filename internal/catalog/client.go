// Package catalog provides a thin client for the remote searchable media
// catalog. The core subsystems only depend on the domain.Show shape this
// client produces.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "tvleaf/1.0"
	queryPath      = "/api/query"
)

// Query is a structured catalog search request.
type Query struct {
	Text        string        // Free-text match against title and topic
	Topic       string        // Exact-ish topic filter
	Channels    []string      // Channel filter set (empty = all)
	MinDuration time.Duration // Lower duration bound (0 = none)
	MaxDuration time.Duration // Upper duration bound (0 = none)
	Offset      int           // Pagination offset
	Size        int           // Page size
}

// Client queries the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new catalog API client
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// Search executes a catalog query and returns one page of shows plus the
// total result count.
func (c *Client) Search(ctx context.Context, q Query) (*Page, error) {
	body, err := json.Marshal(buildQueryRequest(q))
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var qr queryResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if qr.Err != "" {
		return nil, fmt.Errorf("catalog error: %s", qr.Err)
	}

	page := mapPage(&qr)
	c.logger.Debug("catalog query complete", "results", len(page.Shows), "total", page.Total)
	return page, nil
}
