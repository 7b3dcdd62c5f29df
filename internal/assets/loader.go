package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portico/internal/gateway"
	"portico/pkg/logging"
)

// Loader fetches build manifests from deployed module locations. Module
// assets are served from CDN-style hosts, not the gateway, so the loader
// carries its own plain HTTP client with no tenant headers.
type Loader struct {
	httpClient *http.Client
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithLoaderHTTPClient replaces the underlying HTTP client.
func WithLoaderHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = c
	}
}

// NewLoader creates an asset loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches {location}/manifest.json and partitions its imports into
// the stylesheet and script URLs to inject, in manifest document order.
// A non-2xx response is a *gateway.FetchError; asset loading aborts.
func (l *Loader) Load(ctx context.Context, location string) (*AssetSet, error) {
	manifestURL := strings.TrimRight(location, "/") + "/manifest.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gateway.FetchError{
			Status:     resp.StatusCode,
			StatusText: resp.Status,
			Body:       string(body),
			URL:        manifestURL,
		}
	}

	var manifest BuildManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("malformed build manifest at %s: %w", manifestURL, err)
	}

	set := manifest.Partition(location)
	logging.Debug("Assets", "Loaded manifest from %s: %d styles, %d scripts", location, len(set.Styles), len(set.Scripts))
	return &set, nil
}
