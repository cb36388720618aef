package pubstatic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/pubstatic/views"
)

const (
	indexLimit          = 12
	relatedLimit        = 3
	prebuildConcurrency = 4

	indexPath     = "/"
	indexDataPath = "/index.json"
	feedPath      = "/feed.xml"
)

// Publisher decides which paths exist, builds their pages from the content
// store and serves them through the page cache.
type Publisher struct {
	store   ContentStore
	cache   *PageCache
	cfg     SiteConfig
	views   ViewFuncs
	md      goldmark.Markdown
	logger  *slog.Logger
	metrics *Metrics

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewPublisher wires a Publisher. A nil logger means slog.Default; metrics may
// be nil.
func NewPublisher(store ContentStore, cache *PageCache, cfg SiteConfig, v ViewFuncs, logger *slog.Logger, metrics *Metrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store: store,
		cache: cache,
		cfg:   cfg,
		views: DefaultViews().merge(v),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		logger:  logger,
		metrics: metrics,
		known:   make(map[string]struct{}),
	}
}

// Budget returns the staleness budget pages are served under.
func (p *Publisher) Budget() time.Duration {
	return p.cache.TTL()
}

// Cache exposes the page cache, for the admin dashboard.
func (p *Publisher) Cache() *PageCache {
	return p.cache
}

func (p *Publisher) site() views.Site {
	return views.Site{
		Name:        p.cfg.Name,
		URL:         BuildURL(p.cfg.URL),
		Description: p.cfg.Description,
		HomeURL:     p.cfg.PublisherURL,
	}
}

func (p *Publisher) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.StoreTimeout)
}

// EnumeratePaths returns the slug of every addressable post, once each, and
// makes them the known path set. A store failure yields an empty set: pages
// are then built on demand only.
func (p *Publisher) EnumeratePaths(ctx context.Context) []string {
	ctx, cancel := p.storeContext(ctx)
	defer cancel()
	posts, err := p.store.ListPublished(ctx, 0)
	if err != nil {
		p.metrics.storeError("enumerate")
		p.logger.Warn("path enumeration failed, pages build on demand", "error", err)
		return []string{}
	}
	slugs := addressableSlugs(posts)
	known := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		known[s] = struct{}{}
	}
	p.mu.Lock()
	p.known = known
	p.mu.Unlock()
	p.metrics.setKnownPaths(len(slugs))
	return slugs
}

func addressableSlugs(posts []Post) []string {
	seen := make(map[string]struct{}, len(posts))
	slugs := make([]string, 0, len(posts))
	for _, post := range posts {
		if !post.Addressable() {
			continue
		}
		if _, dup := seen[post.Slug]; dup {
			continue
		}
		seen[post.Slug] = struct{}{}
		slugs = append(slugs, post.Slug)
	}
	return slugs
}

// Known reports whether slug was found by the last enumeration or has been
// built since.
func (p *Publisher) Known(slug string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.known[slug]
	return ok
}

// KnownPaths returns the size of the known path set.
func (p *Publisher) KnownPaths() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.known)
}

func (p *Publisher) remember(slug string) {
	p.mu.Lock()
	p.known[slug] = struct{}{}
	p.mu.Unlock()
}

func (p *Publisher) forget(slug string) {
	p.mu.Lock()
	delete(p.known, slug)
	p.mu.Unlock()
}

// RenderPost serves the detail page for slug. Slugs outside the known set are
// still attempted; their first request waits for generation. ErrNotFound means
// no published post has the slug.
func (p *Publisher) RenderPost(ctx context.Context, slug string) (Page, CacheStatus, error) {
	if slug == "" {
		return Page{}, CacheMiss, ErrNotFound
	}
	path := PostPath(slug)
	if !p.Known(slug) {
		p.logger.Debug("path not in last enumeration, building on demand", "path", path)
	}
	page, status, err := p.cache.Get(ctx, path, p.postGenerator(slug))
	if err != nil {
		return Page{}, status, err
	}
	p.remember(slug)
	return page, status, nil
}

func (p *Publisher) postGenerator(slug string) GenerateFunc {
	return func(ctx context.Context) (Page, error) {
		return p.buildPost(ctx, slug)
	}
}

func (p *Publisher) buildPost(ctx context.Context, slug string) (Page, error) {
	post, related, err := p.loadPost(ctx, slug)
	if err != nil {
		return Page{}, err
	}
	data, err := p.postPage(post, related)
	if err != nil {
		return Page{}, err
	}
	body, err := RenderBytes(ctx, p.views.Post(p.site(), data))
	if err != nil {
		return Page{}, fmt.Errorf("render %s: %w", slug, err)
	}
	return Page{ContentType: echo.MIMETextHTMLCharsetUTF8, Body: body}, nil
}

func (p *Publisher) loadPost(ctx context.Context, slug string) (Post, []Post, error) {
	ctx, cancel := p.storeContext(ctx)
	defer cancel()
	post, err := p.store.GetPublished(ctx, slug)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.metrics.storeError("get")
		}
		return Post{}, nil, err
	}
	related, err := p.store.ListRecent(ctx, relatedLimit, post.ID)
	if err != nil {
		p.metrics.storeError("related")
		p.logger.Warn("related posts unavailable", "slug", slug, "error", err)
		related = nil
	}
	return post, related, nil
}

func (p *Publisher) postPage(post Post, related []Post) (views.PostPage, error) {
	body, err := p.renderBody(post.Content)
	if err != nil {
		return views.PostPage{}, fmt.Errorf("render body of %s: %w", post.Slug, err)
	}
	return views.PostPage{
		Meta: views.PageMeta{
			Title:         post.Title + " | " + p.cfg.Name,
			Description:   post.Summary,
			URL:           BuildURL(p.cfg.URL, "blog", post.Slug),
			OGType:        "article",
			Image:         post.ImageURL,
			PublishedTime: formatTime(post.PublishedAt),
			JSONLD:        ArticleJsonLD(post, p.cfg),
		},
		Title:       post.Title,
		Summary:     post.Summary,
		Keyword:     post.Keyword,
		ImageURL:    post.ImageURL,
		Author:      authorName(p.cfg),
		PublishedAt: post.PublishedAt,
		ReadingTime: ReadingTime(post.Content),
		BodyHTML:    body,
		Related:     relatedCards(post, related),
	}, nil
}

// relatedCards drops the post itself and unaddressable posts, keeping at
// most relatedLimit.
func relatedCards(current Post, related []Post) []views.Card {
	var cards []views.Card
	for _, r := range related {
		if len(cards) == relatedLimit {
			break
		}
		if r.ID == current.ID || !r.Addressable() {
			continue
		}
		cards = append(cards, cardOf(listingOf(r)))
	}
	return cards
}

func cardOf(l Listing) views.Card {
	return views.Card{
		Title:       l.Title,
		Link:        PostPath(l.Slug),
		Summary:     l.Summary,
		ImageURL:    l.ImageURL,
		Keyword:     l.Keyword,
		PublishedAt: l.PublishedAt,
		ReadingTime: l.ReadingTime,
	}
}

func (p *Publisher) renderBody(content string) (string, error) {
	if content == "" || p.cfg.BodyFormat != bodyFormatMarkdown {
		return content, nil
	}
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderIndex serves the listing page. An empty query is served from the
// cache; a search filters the cached index snapshot, leaving the featured
// post in place. A store failure with nothing cached renders an empty listing.
func (p *Publisher) RenderIndex(ctx context.Context, query string) (Page, CacheStatus, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		page, status, err := p.cache.Get(ctx, indexPath, p.buildIndex)
		if err == nil {
			return page, status, nil
		}
		p.logger.Warn("index unavailable, rendering empty listing", "error", err)
		page, err = p.renderIndex(ctx, IndexSnapshot{}, "")
		return page, CacheMiss, err
	}

	snap, status, err := p.IndexData(ctx)
	if err != nil {
		return Page{}, status, err
	}
	snap.Posts = FilterListings(snap.Posts, query)
	page, err := p.renderIndex(ctx, snap, query)
	return page, status, err
}

// RenderIndexData serves the index snapshot as JSON. A store failure with
// nothing cached yields an empty snapshot.
func (p *Publisher) RenderIndexData(ctx context.Context) (Page, CacheStatus, error) {
	page, status, err := p.cache.Get(ctx, indexDataPath, p.buildIndexData)
	if err == nil {
		return page, status, nil
	}
	p.logger.Warn("index snapshot unavailable, serving empty snapshot", "error", err)
	page, err = encodeSnapshot(IndexSnapshot{Posts: []Listing{}})
	return page, CacheMiss, err
}

// IndexData returns the decoded index snapshot.
func (p *Publisher) IndexData(ctx context.Context) (IndexSnapshot, CacheStatus, error) {
	page, status, err := p.RenderIndexData(ctx)
	if err != nil {
		return IndexSnapshot{}, status, err
	}
	var snap IndexSnapshot
	if err := json.Unmarshal(page.Body, &snap); err != nil {
		return IndexSnapshot{}, status, fmt.Errorf("decode index snapshot: %w", err)
	}
	return snap, status, nil
}

func (p *Publisher) snapshot(ctx context.Context) (IndexSnapshot, error) {
	ctx, cancel := p.storeContext(ctx)
	defer cancel()
	posts, err := p.store.ListPublished(ctx, indexLimit)
	if err != nil {
		p.metrics.storeError("index")
		return IndexSnapshot{}, err
	}
	snap := IndexSnapshot{Posts: []Listing{}}
	for _, post := range posts {
		if !post.Addressable() {
			continue
		}
		l := listingOf(post)
		if snap.Featured == nil {
			snap.Featured = &l
			continue
		}
		snap.Posts = append(snap.Posts, l)
	}
	return snap, nil
}

func (p *Publisher) buildIndex(ctx context.Context) (Page, error) {
	snap, err := p.snapshot(ctx)
	if err != nil {
		return Page{}, err
	}
	return p.renderIndex(ctx, snap, "")
}

func (p *Publisher) buildIndexData(ctx context.Context) (Page, error) {
	snap, err := p.snapshot(ctx)
	if err != nil {
		return Page{}, err
	}
	return encodeSnapshot(snap)
}

func encodeSnapshot(snap IndexSnapshot) (Page, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return Page{}, err
	}
	return Page{Path: indexDataPath, ContentType: echo.MIMEApplicationJSON, Body: body}, nil
}

func (p *Publisher) renderIndex(ctx context.Context, snap IndexSnapshot, query string) (Page, error) {
	data := views.IndexPage{
		Meta: views.PageMeta{
			Title:       p.cfg.Name,
			Description: p.cfg.Description,
			URL:         BuildURL(p.cfg.URL),
			OGType:      "website",
			JSONLD:      BlogJsonLD(p.cfg),
		},
		Query: query,
	}
	if snap.Featured != nil {
		c := cardOf(*snap.Featured)
		data.Featured = &c
	}
	for _, l := range snap.Posts {
		data.Posts = append(data.Posts, cardOf(l))
	}
	body, err := RenderBytes(ctx, p.views.Index(p.site(), data))
	if err != nil {
		return Page{}, fmt.Errorf("render index: %w", err)
	}
	return Page{Path: indexPath, ContentType: echo.MIMETextHTMLCharsetUTF8, Body: body}, nil
}

// Sitemap builds the site map from the store on every call.
func (p *Publisher) Sitemap(ctx context.Context) ([]byte, error) {
	ctx, cancel := p.storeContext(ctx)
	defer cancel()
	posts, err := p.store.ListPublished(ctx, 0)
	if err != nil {
		p.metrics.storeError("sitemap")
		return nil, err
	}
	return buildSitemap(p.cfg.URL, posts, p.cache.now())
}

// RenderFeed serves the RSS feed of the most recent posts through the cache.
func (p *Publisher) RenderFeed(ctx context.Context) (Page, CacheStatus, error) {
	return p.cache.Get(ctx, feedPath, p.buildFeed)
}

func (p *Publisher) buildFeed(ctx context.Context) (Page, error) {
	ctx, cancel := p.storeContext(ctx)
	defer cancel()
	posts, err := p.store.ListPublished(ctx, indexLimit)
	if err != nil {
		p.metrics.storeError("feed")
		return Page{}, err
	}
	body, err := buildRSS(p.cfg, posts)
	if err != nil {
		return Page{}, err
	}
	return Page{Path: feedPath, ContentType: "application/rss+xml; charset=utf-8", Body: body}, nil
}

// Prebuild enumerates paths and generates every listing and detail page that
// has nothing cached yet. It returns how many pages it built.
func (p *Publisher) Prebuild(ctx context.Context) int {
	jobs := map[string]GenerateFunc{
		indexPath:     p.buildIndex,
		indexDataPath: p.buildIndexData,
		feedPath:      p.buildFeed,
	}
	for _, slug := range p.EnumeratePaths(ctx) {
		jobs[PostPath(slug)] = p.postGenerator(slug)
	}

	var built atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prebuildConcurrency)
	for path, gen := range jobs {
		if p.cache.Has(gctx, path) {
			continue
		}
		g.Go(func() error {
			if _, _, err := p.cache.Get(gctx, path, gen); err != nil {
				p.logger.Warn("prebuild skipped page", "path", path, "error", err)
				return nil
			}
			built.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	n := int(built.Load())
	p.logger.Info("prebuild finished", "paths", len(jobs), "built", n)
	return n
}

// Revalidate regenerates the detail page for slug now. On failure the
// previous page, if any, keeps being served.
func (p *Publisher) Revalidate(ctx context.Context, slug string) error {
	path := PostPath(slug)
	if _, err := p.cache.Revalidate(ctx, path, p.postGenerator(slug)); err != nil {
		return fmt.Errorf("revalidate %s: %w", path, err)
	}
	p.remember(slug)
	return nil
}

// RevalidateIndex regenerates the listing page, its snapshot and the feed.
func (p *Publisher) RevalidateIndex(ctx context.Context) error {
	var errs []error
	for path, gen := range map[string]GenerateFunc{
		indexPath:     p.buildIndex,
		indexDataPath: p.buildIndexData,
		feedPath:      p.buildFeed,
	} {
		if _, err := p.cache.Revalidate(ctx, path, gen); err != nil {
			errs = append(errs, fmt.Errorf("revalidate %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Purge drops the cached detail page for slug, e.g. after it is unpublished.
func (p *Publisher) Purge(ctx context.Context, slug string) error {
	if err := p.cache.Purge(ctx, PostPath(slug)); err != nil {
		return err
	}
	p.forget(slug)
	return nil
}
