package pubstatic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Page is a rendered artifact for one path. A stored Page is never modified;
// regeneration stores a new one in its place.
type Page struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Fresh reports whether the page is still inside its staleness budget.
func (p Page) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.GeneratedAt) < ttl
}

// CacheStatus describes how a page was served.
type CacheStatus string

const (
	CacheHit   CacheStatus = "HIT"
	CacheStale CacheStatus = "STALE"
	CacheMiss  CacheStatus = "MISS"
)

// GenerateFunc produces the page for one path. It must be deterministic for
// unchanged store data.
type GenerateFunc func(ctx context.Context) (Page, error)

// PageBackend persists rendered pages. Backends never expire pages on their
// own: a stale page stays servable until it is replaced or deleted.
type PageBackend interface {
	Load(ctx context.Context, path string) (Page, bool, error)
	Save(ctx context.Context, page Page) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]Page, error)
}

// PageCache serves rendered pages with a fixed staleness budget. Expired pages
// are served once more while a single background regeneration replaces them;
// a path with no page blocks its caller until generation finishes.
type PageCache struct {
	backend PageBackend
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics

	group   singleflight.Group
	pending sync.Map
	wg      sync.WaitGroup

	// epochs counts purges and forced revalidations per path. A flight only
	// saves its page if the epoch it started under is still current.
	mu     sync.Mutex
	epochs map[string]uint64
}

// CacheOption configures a PageCache.
type CacheOption func(*PageCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *PageCache) { c.now = now }
}

// WithGenerateTimeout bounds a single regeneration (default 30s).
func WithGenerateTimeout(d time.Duration) CacheOption {
	return func(c *PageCache) { c.timeout = d }
}

// WithCacheLogger sets the logger used for regeneration failures.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *PageCache) { c.logger = l }
}

// WithCacheMetrics records cache outcomes on m.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *PageCache) { c.metrics = m }
}

// NewPageCache creates a PageCache over backend with staleness budget ttl.
func NewPageCache(backend PageBackend, ttl time.Duration, opts ...CacheOption) *PageCache {
	c := &PageCache{
		backend: backend,
		ttl:     ttl,
		timeout: 30 * time.Second,
		now:     time.Now,
		logger:  slog.Default(),
		epochs:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the staleness budget.
func (c *PageCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the page for path, generating it with gen when nothing is cached.
func (c *PageCache) Get(ctx context.Context, path string, gen GenerateFunc) (Page, CacheStatus, error) {
	if page, ok := c.load(ctx, path); ok {
		if page.Fresh(c.now(), c.ttl) {
			c.metrics.cacheResult(CacheHit)
			return page, CacheHit, nil
		}
		c.metrics.cacheResult(CacheStale)
		c.revalidateAsync(path, gen)
		return page, CacheStale, nil
	}
	c.metrics.cacheResult(CacheMiss)
	page, err := c.generate(ctx, path, gen)
	if err != nil {
		return Page{}, CacheMiss, err
	}
	return page, CacheMiss, nil
}

// Revalidate regenerates path now in a flight of its own, so data read by a
// regeneration already running cannot answer it. Pages from flights started
// before this call are discarded. On failure the previous page stays in place.
func (c *PageCache) Revalidate(ctx context.Context, path string, gen GenerateFunc) (Page, error) {
	epoch := c.bump(path)
	return c.flight(ctx, fmt.Sprintf("%s#%d", path, epoch), path, gen, func() (uint64, bool) { return epoch, true })
}

// Purge drops the page for path; the next request generates it again.
// Regenerations in flight for path finish without storing their page.
func (c *PageCache) Purge(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[path]++
	return c.backend.Delete(ctx, path)
}

// Has reports whether a page, fresh or stale, is cached for path.
func (c *PageCache) Has(ctx context.Context, path string) bool {
	_, ok := c.load(ctx, path)
	return ok
}

// Entries lists cached pages ordered by path.
func (c *PageCache) Entries(ctx context.Context) ([]Page, error) {
	pages, err := c.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

// Wait blocks until background regenerations have finished.
func (c *PageCache) Wait() {
	c.wg.Wait()
}

func (c *PageCache) load(ctx context.Context, path string) (Page, bool) {
	page, ok, err := c.backend.Load(ctx, path)
	if err != nil {
		c.logger.Warn("page cache load failed", "path", path, "error", err)
		return Page{}, false
	}
	return page, ok
}

func (c *PageCache) revalidateAsync(path string, gen GenerateFunc) {
	if _, busy := c.pending.LoadOrStore(path, struct{}{}); busy {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.pending.Delete(path)
		if _, err := c.generate(context.Background(), path, gen); err != nil {
			c.logger.Warn("regeneration failed, serving previous page", "path", path, "error", err)
		}
	}()
}

// generate runs gen for path at most once at a time. Callers that give up
// waiting do not cancel the flight; it finishes under its own timeout.
func (c *PageCache) generate(ctx context.Context, path string, gen GenerateFunc) (Page, error) {
	return c.flight(ctx, path, path, gen, func() (uint64, bool) { return c.epoch(path), false })
}

// flight runs gen under the singleflight key. start is called once the flight
// owns the key and returns the epoch the page is saved under and whether the
// freshness check is skipped.
func (c *PageCache) flight(ctx context.Context, key, path string, gen GenerateFunc, start func() (uint64, bool)) (Page, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		epoch, force := start()
		if !force {
			// A flight that finished after the caller's lookup already did the work.
			if cur, ok := c.load(genCtx, path); ok && cur.Fresh(c.now(), c.ttl) {
				return cur, nil
			}
		}

		began := time.Now()
		page, err := gen(genCtx)
		c.metrics.observeRegeneration(err, time.Since(began))
		if err != nil {
			return nil, err
		}
		page.Path = path
		page.GeneratedAt = c.now()
		if !c.save(genCtx, page, epoch) {
			c.logger.Debug("discarding page superseded during generation", "path", path)
		}
		return page, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	case <-ctx.Done():
		return Page{}, ctx.Err()
	}
}

func (c *PageCache) epoch(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[path]
}

func (c *PageCache) bump(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[path]++
	return c.epochs[path]
}

// save stores page unless path was purged or force-revalidated after the
// flight began. It reports whether the page was kept.
func (c *PageCache) save(ctx context.Context, page Page, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[page.Path] != epoch {
		return false
	}
	if err := c.backend.Save(ctx, page); err != nil {
		c.logger.Warn("page cache save failed", "path", page.Path, "error", err)
	}
	return true
}

// MemoryBackend keeps pages in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	pages map[string]Page
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{pages: make(map[string]Page)}
}

func (m *MemoryBackend) Load(_ context.Context, path string) (Page, bool, error) {
	m.mu.RLock()
	p, ok := m.pages[path]
	m.mu.RUnlock()
	return p, ok, nil
}

func (m *MemoryBackend) Save(_ context.Context, page Page) error {
	m.mu.Lock()
	m.pages[page.Path] = page
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.pages, path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) List(_ context.Context) ([]Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]Page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p)
	}
	return pages, nil
}
