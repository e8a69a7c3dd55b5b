// Package edge wires configuration and dependencies for the edge cache
// process.
package edge

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mybullandbear/bull-bear-cloud/internal/assetcache"
	"github.com/mybullandbear/bull-bear-cloud/internal/assetcache/manifest"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/config"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/otel"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/timeouts"
	edgesvc "github.com/mybullandbear/bull-bear-cloud/internal/services/edge"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage/disk"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage/memory"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage/sqlite"
	"github.com/mybullandbear/bull-bear-cloud/internal/telemetry"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendDisk   = "disk"
)

// Config holds the edge command configuration. Environment variables
// carry the service prefix, e.g. BULLBEAR_EDGE_HTTP_ADDR.
type Config struct {
	HTTPAddr       string `env:"EDGE_HTTP_ADDR" envDefault:"localhost:8091"`
	OriginBaseURL  string `env:"EDGE_ORIGIN_BASE_URL" envDefault:"http://localhost:8000"`
	ManifestPath   string `env:"EDGE_MANIFEST_PATH"`
	StorageBackend string `env:"EDGE_STORAGE_BACKEND" envDefault:"memory"`
	StoragePath    string `env:"EDGE_STORAGE_PATH"`
	InstallOnStart bool   `env:"EDGE_INSTALL_ON_START" envDefault:"true"`
}

// ParseConfig loads defaults from the environment, then lets flags
// override them.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.OriginBaseURL, "origin-base-url", cfg.OriginBaseURL, "Dashboard origin base URL")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "Asset manifest file (JWCC); built-in manifest when empty")
	fs.StringVar(&cfg.StorageBackend, "storage-backend", cfg.StorageBackend, "Cache store backend: memory, sqlite, or disk")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "Cache store path (sqlite file or disk directory)")
	fs.BoolVar(&cfg.InstallOnStart, "install-on-start", cfg.InstallOnStart, "Run the install step before serving")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Run builds the store, manifest, and cache, then serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	otelShutdown, err := otel.Setup(ctx, "edge")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, events, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	m, err := loadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}

	fetcher, err := assetcache.NewOriginFetcher(cfg.OriginBaseURL, nil)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	cache, err := assetcache.New(assetcache.Options{
		Manifest:      m,
		Store:         store,
		Fetcher:       fetcher,
		OriginBaseURL: cfg.OriginBaseURL,
		Client:        &http.Client{Timeout: timeouts.OriginFetch},
		Emitter:       telemetry.NewEmitter(events),
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	if cfg.InstallOnStart {
		if err := cache.Install(ctx); err != nil {
			// The component stays uninstalled and forwards everything;
			// the host can retry through /admin/install.
			log.Printf("install failed: %v", err)
		} else {
			log.Printf("installed %d assets into %s", len(m.Assets), m.Version)
		}
	}

	server, err := edgesvc.NewServer(edgesvc.Config{
		HTTPAddr: cfg.HTTPAddr,
		Cache:    cache,
		Store:    store,
	})
	if err != nil {
		return fmt.Errorf("init edge server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve edge: %w", err)
	}
	return nil
}

func buildStore(cfg Config) (storage.Store, telemetry.EventStore, error) {
	backend := strings.TrimSpace(strings.ToLower(cfg.StorageBackend))
	switch backend {
	case BackendMemory, "":
		return memory.New(), nil, nil
	case BackendSQLite:
		store, err := sqlite.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store, nil
	case BackendDisk:
		store, err := disk.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open disk store: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func loadManifest(path string) (manifest.Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return manifest.Default(), nil
	}
	m, err := manifest.Load(path)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	return m, nil
}
