package views

import (
	"context"
	"io"
)

func layout(ctx context.Context, w io.Writer, site Site, meta PageMeta, body func(h *htmlWriter)) error {
	h := &htmlWriter{w: w}
	h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.raw("<title>")
	h.text(meta.Title)
	h.raw("</title>")
	if meta.Description != "" {
		h.meta("name", "description", meta.Description)
	}
	if meta.URL != "" {
		h.raw(`<link rel="canonical"`)
		h.attr("href", meta.URL)
		h.raw(">")
	}

	h.meta("property", "og:title", meta.Title)
	if meta.Description != "" {
		h.meta("property", "og:description", meta.Description)
	}
	if meta.URL != "" {
		h.meta("property", "og:url", meta.URL)
	}
	h.meta("property", "og:type", meta.OGType)
	h.meta("property", "og:site_name", site.Name)
	if meta.PublishedTime != "" {
		h.meta("property", "article:published_time", meta.PublishedTime)
	}
	if meta.Image != "" {
		h.meta("property", "og:image", meta.Image)
	}

	card := "summary"
	if meta.Image != "" {
		card = "summary_large_image"
	}
	h.meta("name", "twitter:card", card)
	h.meta("name", "twitter:title", meta.Title)
	if meta.Description != "" {
		h.meta("name", "twitter:description", meta.Description)
	}
	if meta.Image != "" {
		h.meta("name", "twitter:image", meta.Image)
	}

	if meta.JSONLD != "" {
		// json.Marshal escapes <, > and &, so the block cannot close the script early.
		h.raw(`<script type="application/ld+json">`)
		h.raw(meta.JSONLD)
		h.raw("</script>")
	}
	h.raw(`<link rel="alternate" type="application/rss+xml" href="/feed.xml"`)
	h.attr("title", site.Name)
	h.raw("></head><body>")

	h.raw(`<header class="site-header"><a class="site-name" href="/">`)
	h.text(site.Name)
	h.raw("</a></header><main>")
	body(h)
	h.raw(`</main><footer class="site-footer"><nav><a href="/">Blog Home</a>`)
	if site.HomeURL != "" {
		h.raw(`<a`)
		h.attr("href", site.HomeURL)
		h.raw(`>Main Site</a>`)
	}
	h.raw("</nav><p>&copy; ")
	h.text(site.Name)
	h.raw(". All rights reserved.</p></footer></body></html>")
	return h.err
}
