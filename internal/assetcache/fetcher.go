package assetcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mybullandbear/bull-bear-cloud/internal/platform/timeouts"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

// Fetcher retrieves one manifest asset from its origin during install.
type Fetcher interface {
	Fetch(ctx context.Context, asset string) (storage.StoredResponse, error)
}

// OriginFetcher fetches assets over HTTP. Path-rooted assets are resolved
// against the origin base URL; absolute assets (CDN scripts, font CSS)
// are fetched as-is.
type OriginFetcher struct {
	baseURL string
	client  *http.Client
}

// NewOriginFetcher creates a fetcher for the given origin base URL.
// A nil client gets a default with the shared origin timeout.
func NewOriginFetcher(baseURL string, client *http.Client) (*OriginFetcher, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: timeouts.OriginFetch}
	}
	return &OriginFetcher{baseURL: trimmed, client: client}, nil
}

// Fetch performs one GET for the asset. Any transport error or a status
// of 400 or above counts as a fetch failure; the install step treats a
// single failure as fatal for the whole manifest.
func (f *OriginFetcher) Fetch(ctx context.Context, asset string) (storage.StoredResponse, error) {
	target := asset
	if strings.HasPrefix(asset, "/") {
		target = f.baseURL + asset
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return storage.StoredResponse{}, fmt.Errorf("build request for %s: %w", asset, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return storage.StoredResponse{}, fmt.Errorf("fetch %s: %w", asset, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return storage.StoredResponse{}, fmt.Errorf("fetch %s: status %d", asset, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.StoredResponse{}, fmt.Errorf("read body of %s: %w", asset, err)
	}
	return storage.StoredResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
