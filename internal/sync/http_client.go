// file: internal/sync/http_client.go
// version: 1.0.0
// guid: 2c8f5a3d-9e1b-4c7a-8d6f-3b0e7a4c9d2e

package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/laosuan/BookPlayer/internal/database"
)

// HTTPClient is a RemoteClient backed by a JSON HTTP backend. Requests are
// rate limited so a burst of folder syncs cannot hammer the backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client for the backend at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// FetchContents returns the remote snapshot for one folder.
func (c *HTTPClient) FetchContents(ctx context.Context, folderPath string) (*RemoteState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/library/contents?path=%s", c.baseURL, url.QueryEscape(folderPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote contents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote returned status %d: %s", resp.StatusCode, string(body))
	}

	var state RemoteState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode remote contents: %w", err)
	}
	return &state, nil
}

// PushItem uploads one item's metadata to the backend.
func (c *HTTPClient) PushItem(ctx context.Context, item database.Item) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload := RemoteItem{
		RelativePath: item.RelativePath,
		Type:         item.Type,
		Title:        item.Title,
		PositionSec:  item.PositionSec,
		DurationSec:  item.DurationSec,
		Speed:        item.Speed,
		IsFinished:   item.IsFinished,
		LastPlayedAt: item.LastPlayedAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/v1/library/items"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push item %q: %w", item.RelativePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote rejected item %q with status %d", item.RelativePath, resp.StatusCode)
	}
	return nil
}
