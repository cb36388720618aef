package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// NotFound renders the 404 page.
func NotFound(site Site) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta := PageMeta{Title: "Not found | " + site.Name, OGType: "website"}
		return layout(ctx, w, site, meta, func(h *htmlWriter) {
			h.raw(`<section class="error"><h1>Article not found</h1>`)
			h.raw(`<p>The article you are looking for does not exist or is no longer published.</p>`)
			h.raw(`<a href="/">Back to the blog</a></section>`)
		})
	})
}

// ServerError renders the 5xx page.
func ServerError(site Site) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta := PageMeta{Title: "Something went wrong | " + site.Name, OGType: "website"}
		return layout(ctx, w, site, meta, func(h *htmlWriter) {
			h.raw(`<section class="error"><h1>Something went wrong</h1>`)
			h.raw(`<p>Please try again in a moment.</p>`)
			h.raw(`<a href="/">Back to the blog</a></section>`)
		})
	})
}
