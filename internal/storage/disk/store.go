// Package disk provides a filesystem-backed cache store.
//
// Each namespace is a directory and each entry a gob file named by the
// SHA-256 of its request key. Entry files are written atomically so a
// reader never observes a torn response.
package disk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

const entryExt = ".gob"

// Store keeps cached responses under a root directory.
type Store struct {
	root string
}

// Open creates the root directory when absent and returns the store.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanRoot := filepath.Clean(root)
	if err := os.MkdirAll(cleanRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: cleanRoot}, nil
}

// Close is a no-op for the disk backend.
func (s *Store) Close() error {
	return nil
}

// OpenNamespace creates the namespace directory when absent.
func (s *Store) OpenNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	return nil
}

// Put writes one entry file atomically.
func (s *Store) Put(ctx context.Context, namespace, url string, resp storage.StoredResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.OpenNamespace(ctx, namespace); err != nil {
		return err
	}
	return s.writeEntry(namespace, url, resp)
}

// Get reads one entry file, returning storage.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, namespace, url string) (storage.StoredResponse, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredResponse{}, err
	}
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return storage.StoredResponse{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, entryFileName(url)))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.StoredResponse{}, storage.ErrNotFound
		}
		return storage.StoredResponse{}, fmt.Errorf("read cache entry: %w", err)
	}
	var resp storage.StoredResponse
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&resp); err != nil {
		return storage.StoredResponse{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return resp, nil
}

// PutAll stages the whole batch in a temporary directory and renames it
// into place, so a failure at any point before the final rename leaves
// the live namespace exactly as it was. Prior entries absent from the
// batch are carried over into the new directory.
func (s *Store) PutAll(ctx context.Context, namespace string, entries []storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(s.root, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	batch := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(entry.Response); err != nil {
			return fmt.Errorf("encode cache entry %s: %w", entry.URL, err)
		}
		name := entryFileName(entry.URL)
		if err := atomic.WriteFile(filepath.Join(staging, name), bytes.NewReader(buf.Bytes())); err != nil {
			return fmt.Errorf("stage cache entry %s: %w", entry.URL, err)
		}
		batch[name] = true
	}
	if err := carryOver(dir, staging, batch); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return swapDirs(dir, staging)
}

// carryOver links prior entry files absent from the batch into the
// staging directory so the commit does not drop them.
func carryOver(dir, staging string, batch map[string]bool) error {
	prior, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read namespace dir: %w", err)
	}
	for _, entry := range prior {
		if !entry.Type().IsRegular() || batch[entry.Name()] {
			continue
		}
		if err := os.Link(filepath.Join(dir, entry.Name()), filepath.Join(staging, entry.Name())); err != nil {
			return fmt.Errorf("carry over cache entry: %w", err)
		}
	}
	return nil
}

// swapDirs makes staging the live namespace directory. The previous
// directory is moved aside first and restored if the swap fails.
func swapDirs(dir, staging string) error {
	backup := staging + ".bak"
	switch err := os.Rename(dir, backup); {
	case err == nil:
	case os.IsNotExist(err):
		backup = ""
	default:
		return fmt.Errorf("retire namespace dir: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("commit namespace dir: %w", err)
	}
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("remove retired namespace dir: %w", err)
		}
	}
	return nil
}

// Namespaces lists namespace directories in sorted order.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace removes the namespace directory.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete namespace dir: %w", err)
	}
	return nil
}

func (s *Store) writeEntry(namespace, url string, resp storage.StoredResponse) error {
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return fmt.Errorf("encode cache entry %s: %w", url, err)
	}
	path := filepath.Join(dir, entryFileName(url))
	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("write cache entry %s: %w", url, err)
	}
	return nil
}

// namespaceDir rejects names that would escape the root.
func (s *Store) namespaceDir(namespace string) (string, error) {
	trimmed := strings.TrimSpace(namespace)
	if trimmed == "" {
		return "", fmt.Errorf("namespace is required")
	}
	if strings.ContainsAny(trimmed, "/\\") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	return filepath.Join(s.root, trimmed), nil
}

func entryFileName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:]) + entryExt
}
