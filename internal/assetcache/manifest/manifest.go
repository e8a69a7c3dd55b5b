// Package manifest loads the asset manifest: the versioned list of URLs
// the cache must hold after a successful install.
//
// Manifest files use JWCC (JSON with comments and trailing commas) so
// deployments can annotate why an asset is pinned.
package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tailscale/hujson"
)

// Manifest names a cache version and the assets guaranteed to be cached
// under it. Bumping Version opens a fresh namespace; old namespaces are
// left untouched until explicitly deleted.
type Manifest struct {
	Version string   `json:"version"`
	Assets  []string `json:"assets"`
}

// Default returns the built-in manifest covering the dashboard shell.
func Default() Manifest {
	return Manifest{
		Version: "bullbear-v1",
		Assets: []string{
			"/",
			"/static/styles.css",
			"/static/app.js",
			"/static/manifest.json",
			"/static/icons/icon-192.png",
			"/static/icons/icon-512.png",
			"https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.js",
			"https://fonts.googleapis.com/css2?family=Inter:wght@400;600&display=swap",
		},
	}
}

// Load reads and parses a manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a JWCC manifest document and validates it.
func Parse(data []byte) (Manifest, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("standardize manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(standardized, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the manifest invariants: a version, at least one asset,
// every asset a parseable URL or absolute path, and no duplicates.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("manifest version is required")
	}
	if len(m.Assets) == 0 {
		return fmt.Errorf("manifest needs at least one asset")
	}
	seen := make(map[string]bool, len(m.Assets))
	for _, asset := range m.Assets {
		trimmed := strings.TrimSpace(asset)
		if trimmed == "" {
			return fmt.Errorf("manifest contains an empty asset URL")
		}
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return fmt.Errorf("asset %q: %w", asset, err)
		}
		if !parsed.IsAbs() && !strings.HasPrefix(trimmed, "/") {
			return fmt.Errorf("asset %q must be absolute or path-rooted", asset)
		}
		if seen[trimmed] {
			return fmt.Errorf("asset %q listed twice", asset)
		}
		seen[trimmed] = true
	}
	return nil
}
