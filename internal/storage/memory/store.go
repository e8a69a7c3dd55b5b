// Package memory provides an in-memory cache store.
//
// It is the default backend for tests and for deployments that accept
// losing the cache on restart (the install step repopulates it).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

// Store keeps cached responses in nested maps guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]storage.StoredResponse
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{namespaces: make(map[string]map[string]storage.StoredResponse)}
}

// OpenNamespace creates the namespace when absent.
func (s *Store) OpenNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[namespace]; !ok {
		s.namespaces[namespace] = make(map[string]storage.StoredResponse)
	}
	return nil
}

// Put stores one response under the namespace.
func (s *Store) Put(ctx context.Context, namespace, url string, resp storage.StoredResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.namespaces[namespace]
	if !ok {
		entries = make(map[string]storage.StoredResponse)
		s.namespaces[namespace] = entries
	}
	entries[url] = resp
	return nil
}

// Get returns the stored response for url, or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, url string) (storage.StoredResponse, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.namespaces[namespace]
	if !ok {
		return storage.StoredResponse{}, storage.ErrNotFound
	}
	resp, ok := entries[url]
	if !ok {
		return storage.StoredResponse{}, storage.ErrNotFound
	}
	return resp, nil
}

// PutAll stores every entry under one lock so the batch is all-or-nothing.
func (s *Store) PutAll(ctx context.Context, namespace string, entries []storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.namespaces[namespace]
	if !ok {
		target = make(map[string]storage.StoredResponse)
		s.namespaces[namespace] = target
	}
	for _, entry := range entries {
		target[entry.URL] = entry.Response
	}
	return nil
}

// Namespaces lists known namespaces in sorted order.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace removes a namespace and all of its entries.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error {
	return nil
}
