// Package assetcache implements the versioned offline asset cache: an
// install step that prefetches a fixed manifest into a namespace named by
// the manifest version, and a serving path that answers cache-first and
// passes misses through to the origin unchanged.
//
// Entries are written only during install. A fetch miss never writes back
// to the cache, and a new version never disturbs an old namespace.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mybullandbear/bull-bear-cloud/internal/assetcache/manifest"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/timeouts"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
	"github.com/mybullandbear/bull-bear-cloud/internal/telemetry"
)

const tracerName = "bullbear.assetcache"

// installConcurrency caps parallel manifest fetches during install.
const installConcurrency = 4

// InstallError reports the first manifest asset that failed during an
// install run. The install is all-or-nothing: no partial cache survives.
type InstallError struct {
	URL string
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.URL, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Options configure a Cache. The namespace is injected through the
// manifest version rather than living as a package constant.
type Options struct {
	Manifest manifest.Manifest
	Store    storage.Store
	Fetcher  Fetcher

	// OriginBaseURL is where path-rooted misses are forwarded.
	OriginBaseURL string

	// Client performs passthrough requests. Defaults to a client with
	// the shared origin timeout.
	Client *http.Client

	// Emitter records install outcomes. Optional.
	Emitter *telemetry.Emitter
}

// Cache is the offline asset cache component.
//
// It starts uninstalled and forwards every request until Install
// succeeds; afterwards it serves manifest assets from its namespace and
// forwards everything else.
type Cache struct {
	manifest  manifest.Manifest
	store     storage.Store
	fetcher   Fetcher
	originURL string
	client    *http.Client
	emitter   *telemetry.Emitter
	tracer    trace.Tracer

	installMu sync.Mutex
	installed atomic.Bool

	hits     atomic.Int64
	misses   atomic.Int64
	forwards atomic.Int64
}

// New validates the options and builds an uninstalled cache.
func New(opts Options) (*Cache, error) {
	if err := opts.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	originURL := strings.TrimRight(strings.TrimSpace(opts.OriginBaseURL), "/")
	if originURL == "" {
		return nil, errors.New("origin base url is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeouts.OriginFetch}
	}
	return &Cache{
		manifest:  opts.Manifest,
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		originURL: originURL,
		client:    client,
		emitter:   opts.Emitter,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Namespace returns the cache namespace this component serves from.
func (c *Cache) Namespace() string {
	return c.manifest.Version
}

// Installed reports whether the component is eligible to intercept.
func (c *Cache) Installed() bool {
	return c.installed.Load()
}

// Install opens the namespace and prefetches every manifest asset,
// committing them in one batch only when every fetch succeeded. A single
// failure fails the whole run and leaves the component uninstalled (an
// earlier successful install keeps serving). Re-running with an unchanged
// manifest re-fetches and overwrites the same entries, which is a
// semantic no-op.
func (c *Cache) Install(ctx context.Context) error {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	ctx, span := c.tracer.Start(ctx, "assetcache.install",
		trace.WithAttributes(
			attribute.String("cache.namespace", c.manifest.Version),
			attribute.Int("cache.assets", len(c.manifest.Assets)),
		),
	)
	defer span.End()

	err := c.install(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "install failed")
		c.emitInstallEvent(ctx, telemetry.OutcomeFailed, err.Error())
		return err
	}
	c.emitInstallEvent(ctx, telemetry.OutcomeSucceeded, "")
	return nil
}

func (c *Cache) install(ctx context.Context) error {
	if err := c.store.OpenNamespace(ctx, c.manifest.Version); err != nil {
		return fmt.Errorf("open namespace %s: %w", c.manifest.Version, err)
	}

	staged := make([]storage.Entry, len(c.manifest.Assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)
	for i, asset := range c.manifest.Assets {
		i, asset := i, asset
		g.Go(func() error {
			resp, err := c.fetcher.Fetch(gctx, asset)
			if err != nil {
				return &InstallError{URL: asset, Err: err}
			}
			staged[i] = storage.Entry{URL: asset, Response: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := c.store.PutAll(ctx, c.manifest.Version, staged); err != nil {
		return fmt.Errorf("commit namespace %s: %w", c.manifest.Version, err)
	}
	c.installed.Store(true)
	return nil
}

func (c *Cache) emitInstallEvent(ctx context.Context, outcome, detail string) {
	evt := telemetry.Event{
		Kind:       telemetry.KindInstall,
		Namespace:  c.manifest.Version,
		AssetCount: len(c.manifest.Assets),
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := c.emitter.Emit(ctx, evt); err != nil {
		log.Printf("record install event: %v", err)
	}
}

// ServeHTTP intercepts one request: cache hit replays the stored response
// without touching the network; anything else is forwarded to the origin
// exactly once and relayed unchanged. Misses never create cache entries.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.installed.Load() {
		key := requestKey(r)
		resp, err := c.store.Get(r.Context(), c.manifest.Version, key)
		if err == nil {
			c.hits.Add(1)
			writeStored(w, resp)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("cache lookup %s: %v", key, err)
		}
		c.misses.Add(1)
	}
	c.forwards.Add(1)
	c.forward(w, r)
}

// requestKey derives the lookup key the way manifest assets are stored:
// absolute URLs keep their full form, everything else its path and query.
func requestKey(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return r.URL.RequestURI()
}

// forward relays the request to its origin and the response or failure
// back to the client, with no retry and no fallback content.
func (c *Cache) forward(w http.ResponseWriter, r *http.Request) {
	target := c.originURL + r.URL.RequestURI()
	if r.URL.IsAbs() {
		target = r.URL.String()
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("forward request: %v", err), http.StatusBadGateway)
		return
	}
	copyHeader(req.Header, r.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("origin fetch failed: %v", err), http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("relay origin body: %v", err)
	}
}

// hopByHopHeaders must not be forwarded between connections.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
}

func writeStored(w http.ResponseWriter, resp storage.StoredResponse) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		log.Printf("write cached body: %v", err)
	}
}
