package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Index renders the blog listing with its search form.
func Index(site Site, page IndexPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(ctx, w, site, page.Meta, func(h *htmlWriter) {
			h.raw(`<section class="hero"><h1>`)
			h.text(site.Name)
			h.raw("</h1>")
			if site.Description != "" {
				h.raw("<p>")
				h.text(site.Description)
				h.raw("</p>")
			}
			h.raw(`<form class="search" method="get" action="/" role="search">`)
			h.raw(`<input type="search" name="q" placeholder="Search articles..."`)
			h.attr("value", page.Query)
			h.raw(`><button type="submit">Search</button></form></section>`)

			if page.Featured != nil {
				h.raw(`<section class="featured"><h2>Featured Article</h2>`)
				card(h, *page.Featured, "featured-card")
				h.raw("</section>")
			}

			h.raw(`<section class="latest"><h2>Latest Articles</h2>`)
			if len(page.Posts) == 0 {
				h.raw(`<p class="empty-state">`)
				if page.Query != "" {
					h.raw("No articles match &ldquo;")
					h.text(page.Query)
					h.raw("&rdquo;.")
				} else {
					h.raw("No articles found.")
				}
				h.raw("</p>")
			} else {
				h.raw(`<div class="post-grid">`)
				for _, c := range page.Posts {
					card(h, c, "post-card")
				}
				h.raw("</div>")
			}
			h.raw("</section>")
		})
	})
}

// Post renders a full article page.
func Post(site Site, page PostPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(ctx, w, site, page.Meta, func(h *htmlWriter) {
			h.raw(`<article class="post"><div class="post-meta">`)
			if page.Keyword != "" {
				h.raw(`<span class="keyword">`)
				h.text(page.Keyword)
				h.raw("</span>")
			}
			h.raw("<h1>")
			h.text(page.Title)
			h.raw("</h1>")
			if page.Summary != "" {
				h.raw(`<p class="lede">`)
				h.text(page.Summary)
				h.raw("</p>")
			}
			h.raw(`<div class="byline">`)
			if page.Author != "" {
				h.raw("<span>By ")
				h.text(page.Author)
				h.raw("</span>")
			}
			if !page.PublishedAt.IsZero() {
				h.raw("<time")
				h.attr("datetime", page.Meta.PublishedTime)
				h.raw(">")
				h.text(FormatDate(page.PublishedAt))
				h.raw("</time>")
			}
			h.raw(`<span class="reading-time">`)
			h.text(ReadingLabel(page.ReadingTime))
			h.raw("</span></div></div>")

			if page.ImageURL != "" {
				h.raw(`<img class="cover"`)
				h.attr("src", page.ImageURL)
				h.attr("alt", page.Title)
				h.raw(">")
			}

			h.raw(`<div class="prose">`)
			if page.BodyHTML != "" {
				h.raw(page.BodyHTML)
			} else {
				h.raw(`<p class="pending">Content coming soon...</p>`)
			}
			h.raw("</div></article>")

			if len(page.Related) > 0 {
				h.raw(`<section class="related"><h2>Related Articles</h2><div class="post-grid">`)
				for _, c := range page.Related {
					card(h, c, "related-card")
				}
				h.raw("</div></section>")
			}
		})
	})
}

func card(h *htmlWriter, c Card, class string) {
	h.raw("<article")
	h.attr("class", class)
	h.raw("><a")
	h.attr("href", c.Link)
	h.raw(">")
	if c.ImageURL != "" {
		h.raw("<img")
		h.attr("src", c.ImageURL)
		h.attr("alt", c.Title)
		h.raw(` loading="lazy">`)
	}
	if c.Keyword != "" {
		h.raw(`<span class="keyword">`)
		h.text(c.Keyword)
		h.raw("</span>")
	}
	h.raw("<h3>")
	h.text(c.Title)
	h.raw("</h3>")
	if c.Summary != "" {
		h.raw(`<p class="summary">`)
		h.text(c.Summary)
		h.raw("</p>")
	}
	h.raw(`<div class="card-meta">`)
	if !c.PublishedAt.IsZero() {
		h.raw("<span>")
		h.text(FormatDate(c.PublishedAt))
		h.raw("</span>")
	}
	if c.ReadingTime > 0 {
		h.raw("<span>")
		h.text(ReadingLabel(c.ReadingTime))
		h.raw("</span>")
	}
	h.raw("</div></a></article>")
}
