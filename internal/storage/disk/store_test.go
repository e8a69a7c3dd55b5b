package disk

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

// failAfterContext reports cancellation once its first n Err calls have
// been spent, so a batch write can be failed at a chosen point.
type failAfterContext struct {
	context.Context
	remaining int
}

func (c *failAfterContext) Err() error {
	if c.remaining > 0 {
		c.remaining--
		return nil
	}
	return context.Canceled
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := storage.StoredResponse{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {"text/html"}},
		Body:       []byte("<html></html>"),
		FetchedAt:  time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Put(context.Background(), "bullbear-v1", "https://fonts.googleapis.com/css2?family=Inter", input); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(context.Background(), "bullbear-v1", "https://fonts.googleapis.com/css2?family=Inter")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", got.StatusCode)
	}
	if string(got.Body) != "<html></html>" {
		t.Fatalf("body = %q", got.Body)
	}
	if got.Header["Content-Type"][0] != "text/html" {
		t.Fatalf("content type = %q", got.Header["Content-Type"][0])
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.Get(context.Background(), "bullbear-v1", "/missing.json")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestPutAllThenNamespaces(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	entries := []storage.Entry{
		{URL: "/", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("index")}},
		{URL: "/static/app.js", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("js")}},
	}
	if err := store.PutAll(context.Background(), "bullbear-v1", entries); err != nil {
		t.Fatalf("put all: %v", err)
	}
	for _, entry := range entries {
		if _, err := store.Get(context.Background(), "bullbear-v1", entry.URL); err != nil {
			t.Fatalf("get %s: %v", entry.URL, err)
		}
	}

	names, err := store.Namespaces(context.Background())
	if err != nil {
		t.Fatalf("namespaces: %v", err)
	}
	if len(names) != 1 || names[0] != "bullbear-v1" {
		t.Fatalf("namespaces = %v, want [bullbear-v1]", names)
	}
}

func TestPutAllFailureKeepsLiveNamespace(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	prior := []storage.Entry{
		{URL: "/", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("old-index")}},
		{URL: "/static/app.js", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("old-js")}},
	}
	if err := store.PutAll(context.Background(), "bullbear-v1", prior); err != nil {
		t.Fatalf("seed put all: %v", err)
	}

	batch := []storage.Entry{
		{URL: "/", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("new-index")}},
		{URL: "/new.css", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("css")}},
	}
	// Fail after every entry is staged but before the directory swap.
	ctx := &failAfterContext{Context: context.Background(), remaining: 1 + len(batch)}
	if err := store.PutAll(ctx, "bullbear-v1", batch); err == nil {
		t.Fatal("expected put all to fail")
	}

	got, err := store.Get(context.Background(), "bullbear-v1", "/")
	if err != nil {
		t.Fatalf("get after failed batch: %v", err)
	}
	if string(got.Body) != "old-index" {
		t.Fatalf("body = %q, want %q", got.Body, "old-index")
	}
	if _, err := store.Get(context.Background(), "bullbear-v1", "/new.css"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("new entry error = %v, want %v", err, storage.ErrNotFound)
	}

	dirs, err := os.ReadDir(store.root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Name() != "bullbear-v1" {
		t.Fatalf("root contents = %v, want only the namespace dir", dirs)
	}
}

func TestPutAllReplacesAndCarriesOver(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.Put(context.Background(), "bullbear-v1", "/extra.json", storage.StoredResponse{StatusCode: 200, Body: []byte("extra")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	first := []storage.Entry{
		{URL: "/", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("v1")}},
		{URL: "/a.js", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("js")}},
	}
	if err := store.PutAll(context.Background(), "bullbear-v1", first); err != nil {
		t.Fatalf("first put all: %v", err)
	}

	second := []storage.Entry{
		{URL: "/", Response: storage.StoredResponse{StatusCode: 200, Body: []byte("v2")}},
	}
	if err := store.PutAll(context.Background(), "bullbear-v1", second); err != nil {
		t.Fatalf("second put all: %v", err)
	}

	want := map[string]string{"/": "v2", "/a.js": "js", "/extra.json": "extra"}
	for url, body := range want {
		got, err := store.Get(context.Background(), "bullbear-v1", url)
		if err != nil {
			t.Fatalf("get %s: %v", url, err)
		}
		if string(got.Body) != body {
			t.Fatalf("body for %s = %q, want %q", url, got.Body, body)
		}
	}

	names, err := store.Namespaces(context.Background())
	if err != nil {
		t.Fatalf("namespaces: %v", err)
	}
	if len(names) != 1 || names[0] != "bullbear-v1" {
		t.Fatalf("namespaces = %v, want [bullbear-v1]", names)
	}
}

func TestDeleteNamespace(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.Put(context.Background(), "bullbear-v1", "/", storage.StoredResponse{StatusCode: 200}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.DeleteNamespace(context.Background(), "bullbear-v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(context.Background(), "bullbear-v1", "/"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after delete error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestRejectsPathEscapingNamespace(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.Put(context.Background(), "../outside", "/", storage.StoredResponse{StatusCode: 200})
	if err == nil {
		t.Fatal("expected invalid namespace error")
	}
}
