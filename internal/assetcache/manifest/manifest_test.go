package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseJWCCWithComments(t *testing.T) {
	t.Parallel()

	doc := []byte(`{
		// Bump the version to invalidate every cached asset.
		"version": "bullbear-v2",
		"assets": [
			"/",
			"/static/app.js", // dashboard bundle
		],
	}`)
	m, err := Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Version != "bullbear-v2" {
		t.Fatalf("version = %q, want %q", m.Version, "bullbear-v2")
	}
	if len(m.Assets) != 2 {
		t.Fatalf("assets = %d, want 2", len(m.Assets))
	}
	if m.Assets[1] != "/static/app.js" {
		t.Fatalf("assets[1] = %q, want %q", m.Assets[1], "/static/app.js")
	}
}

func TestParseRejectsMissingVersion(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"assets": ["/"]}`))
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("error = %v, want version error", err)
	}
}

func TestParseRejectsEmptyAssets(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"version": "bullbear-v1", "assets": []}`))
	if err == nil {
		t.Fatal("expected empty assets error")
	}
}

func TestParseRejectsDuplicateAsset(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"version": "bullbear-v1", "assets": ["/", "/"]}`))
	if err == nil || !strings.Contains(err.Error(), "twice") {
		t.Fatalf("error = %v, want duplicate error", err)
	}
}

func TestParseRejectsRelativeAsset(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"version": "bullbear-v1", "assets": ["static/app.js"]}`))
	if err == nil {
		t.Fatal("expected path-rooted error")
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default manifest invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "assets.jwcc")
	doc := `{
		"version": "bullbear-v1",
		"assets": ["/", "https://cdn.example.com/chart.js"],
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write manifest file: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Version != "bullbear-v1" {
		t.Fatalf("version = %q, want %q", m.Version, "bullbear-v1")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.jwcc")); err == nil {
		t.Fatal("expected read error")
	}
}
