// Package sqlite provides a SQLite-backed cache store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/mybullandbear/bull-bear-cloud/internal/platform/storage/sqlitemigrate"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage/sqlite/migrations"
	"github.com/mybullandbear/bull-bear-cloud/internal/telemetry"
	_ "modernc.org/sqlite"
)

// Store persists cached responses and install events in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite cache store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// OpenNamespace records the namespace when absent.
func (s *Store) OpenNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO cache_namespaces (name, created_at) VALUES (?, ?)",
		namespace,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("open namespace: %w", err)
	}
	return nil
}

// Put upserts one cached response.
func (s *Store) Put(ctx context.Context, namespace, url string, resp storage.StoredResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	header, err := encodeHeader(resp.Header)
	if err != nil {
		return err
	}
	fetchedAt := resp.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cache_entries (namespace, url, status_code, header, body, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, url) DO UPDATE SET
		   status_code = excluded.status_code,
		   header = excluded.header,
		   body = excluded.body,
		   fetched_at = excluded.fetched_at`,
		namespace,
		url,
		resp.StatusCode,
		header,
		resp.Body,
		toMillis(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Get returns one cached response, or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, url string) (storage.StoredResponse, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredResponse{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StoredResponse{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		"SELECT status_code, header, body, fetched_at FROM cache_entries WHERE namespace = ? AND url = ?",
		namespace,
		url,
	)
	var (
		statusCode int
		header     string
		body       []byte
		fetchedAt  int64
	)
	if err := row.Scan(&statusCode, &header, &body, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoredResponse{}, storage.ErrNotFound
		}
		return storage.StoredResponse{}, fmt.Errorf("get cache entry: %w", err)
	}
	decoded, err := decodeHeader(header)
	if err != nil {
		return storage.StoredResponse{}, err
	}
	return storage.StoredResponse{
		StatusCode: statusCode,
		Header:     decoded,
		Body:       body,
		FetchedAt:  fromMillis(fetchedAt),
	}, nil
}

// PutAll commits every entry in a single transaction.
func (s *Store) PutAll(ctx context.Context, namespace string, entries []storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache batch: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO cache_namespaces (name, created_at) VALUES (?, ?)",
		namespace,
		toMillis(time.Now()),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record namespace: %w", err)
	}
	for _, entry := range entries {
		header, err := encodeHeader(entry.Response.Header)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		fetchedAt := entry.Response.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO cache_entries (namespace, url, status_code, header, body, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (namespace, url) DO UPDATE SET
			   status_code = excluded.status_code,
			   header = excluded.header,
			   body = excluded.body,
			   fetched_at = excluded.fetched_at`,
			namespace,
			entry.URL,
			entry.Response.StatusCode,
			header,
			entry.Response.Body,
			toMillis(fetchedAt),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put cache entry %s: %w", entry.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache batch: %w", err)
	}
	return nil
}

// Namespaces lists recorded namespaces in sorted order.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT name FROM cache_namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespaces: %w", err)
	}
	return names, nil
}

// DeleteNamespace removes a namespace and every entry under it.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin namespace delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE namespace = ?", namespace); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete cache entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_namespaces WHERE name = ?", namespace); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete namespace: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit namespace delete: %w", err)
	}
	return nil
}

// AppendEvent records one lifecycle event.
func (s *Store) AppendEvent(ctx context.Context, evt telemetry.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO install_events (id, kind, namespace, asset_count, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		evt.Kind,
		evt.Namespace,
		evt.AssetCount,
		evt.Outcome,
		evt.Detail,
		toMillis(evt.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func encodeHeader(header map[string][]string) (string, error) {
	if header == nil {
		header = map[string][]string{}
	}
	data, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return string(data), nil
}

func decodeHeader(value string) (map[string][]string, error) {
	header := map[string][]string{}
	if strings.TrimSpace(value) == "" {
		return header, nil
	}
	if err := json.Unmarshal([]byte(value), &header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return header, nil
}
