package pubstatic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Export renders every page from the store into dir as a static site:
// index.html, index.json, feed.xml, sitemap.xml and blog/<slug>/index.html.
// It returns the number of files written. Articles that fail to render are
// skipped; listing pages are required.
func (p *Publisher) Export(ctx context.Context, dir string) (int, error) {
	var written atomic.Int64
	write := func(rel string, body []byte) error {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return err
		}
		written.Add(1)
		return nil
	}

	listings := []struct {
		file string
		gen  GenerateFunc
	}{
		{"index.html", p.buildIndex},
		{"index.json", p.buildIndexData},
		{"feed.xml", p.buildFeed},
	}
	for _, l := range listings {
		page, err := l.gen(ctx)
		if err != nil {
			return int(written.Load()), fmt.Errorf("export %s: %w", l.file, err)
		}
		if err := write(l.file, page.Body); err != nil {
			return int(written.Load()), err
		}
	}
	sitemap, err := p.Sitemap(ctx)
	if err != nil {
		return int(written.Load()), fmt.Errorf("export sitemap.xml: %w", err)
	}
	if err := write("sitemap.xml", sitemap); err != nil {
		return int(written.Load()), err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prebuildConcurrency)
	for _, slug := range p.EnumeratePaths(ctx) {
		if !exportableSlug(slug) {
			p.logger.Warn("export skipped article with unsafe slug", "slug", slug)
			continue
		}
		g.Go(func() error {
			page, err := p.buildPost(gctx, slug)
			if err != nil {
				p.logger.Warn("export skipped article", "slug", slug, "error", err)
				return nil
			}
			return write(filepath.Join("blog", slug, "index.html"), page.Body)
		})
	}
	err = g.Wait()
	n := int(written.Load())
	p.logger.Info("export finished", "dir", dir, "files", n)
	return n, err
}

// exportableSlug reports whether slug names a single directory inside the
// export root.
func exportableSlug(slug string) bool {
	return filepath.IsLocal(slug) && !strings.ContainsAny(slug, `/\`) && slug != "."
}
