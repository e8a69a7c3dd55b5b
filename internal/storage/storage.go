// Package storage defines the persistence contract for cached asset
// responses. Entries are grouped by versioned namespace; bumping the
// version opens a fresh namespace without touching the old one.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested cache entry is missing.
var ErrNotFound = errors.New("cache entry not found")

// StoredResponse is a cached origin response.
type StoredResponse struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
	FetchedAt  time.Time
}

// Entry pairs a request key with its stored response.
type Entry struct {
	URL      string
	Response StoredResponse
}

// Store persists cached responses grouped by namespace.
//
// Per-key reads and writes are atomic. PutAll commits a batch so that
// either every entry lands or none do; it is the only write path the
// install step uses.
type Store interface {
	// OpenNamespace creates the namespace when absent. Opening an
	// existing namespace is a no-op.
	OpenNamespace(ctx context.Context, namespace string) error

	Put(ctx context.Context, namespace, url string, resp StoredResponse) error
	Get(ctx context.Context, namespace, url string) (StoredResponse, error)

	// PutAll stores every entry under the namespace, or none of them.
	PutAll(ctx context.Context, namespace string, entries []Entry) error

	// Namespaces lists every namespace known to the store.
	Namespaces(ctx context.Context) ([]string, error)

	// DeleteNamespace removes a namespace and all of its entries.
	// Deleting an unknown namespace is a no-op.
	DeleteNamespace(ctx context.Context, namespace string) error

	Close() error
}
