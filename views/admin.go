package views

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// AdminLogin renders the password form.
func AdminLogin(site Site, showError bool, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta := PageMeta{Title: "Admin | " + site.Name, OGType: "website"}
		return layout(ctx, w, site, meta, func(h *htmlWriter) {
			h.raw(`<section class="admin"><h1>Admin</h1>`)
			if showError {
				h.raw(`<p class="error">Wrong password.</p>`)
			}
			h.raw(`<form method="post" action="/admin/login">`)
			csrfField(h, csrfToken)
			h.raw(`<input type="password" name="password" autocomplete="current-password" required>`)
			h.raw(`<button type="submit">Log in</button></form></section>`)
		})
	})
}

// AdminDashboard lists cached pages with their age and offers on-demand
// revalidation and purge.
func AdminDashboard(site Site, page AdminPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta := PageMeta{Title: "Admin | " + site.Name, OGType: "website"}
		return layout(ctx, w, site, meta, func(h *htmlWriter) {
			h.raw(`<section class="admin"><h1>Pages</h1>`)
			if page.Message != "" {
				h.raw(`<p class="notice">`)
				h.text(page.Message)
				h.raw("</p>")
			}
			h.raw("<p>")
			h.text(page.Budget.String())
			h.raw(" staleness budget, ")
			h.text(strconv.Itoa(page.KnownPaths))
			h.raw(" known article paths.</p>")

			h.raw(`<form method="post" action="/admin/revalidate">`)
			csrfField(h, page.CSRFToken)
			h.raw(`<input type="text" name="slug" placeholder="slug (empty for index)">`)
			h.raw(`<button type="submit">Revalidate</button>`)
			h.raw(`<button type="submit" formaction="/admin/purge">Purge</button></form>`)

			h.raw(`<table><thead><tr><th>Path</th><th>Generated</th><th>Age</th><th>State</th></tr></thead><tbody>`)
			for _, e := range page.Entries {
				h.raw("<tr><td>")
				h.text(e.Path)
				h.raw("</td><td>")
				h.text(e.GeneratedAt.UTC().Format(time.RFC3339))
				h.raw("</td><td>")
				h.text(e.Age.Round(time.Second).String())
				h.raw("</td><td>")
				if e.Stale {
					h.raw("stale")
				} else {
					h.raw("fresh")
				}
				h.raw("</td></tr>")
			}
			h.raw("</tbody></table>")
			h.raw(`<form method="post" action="/admin/logout">`)
			csrfField(h, page.CSRFToken)
			h.raw(`<button type="submit">Log out</button></form></section>`)
		})
	})
}

func csrfField(h *htmlWriter, token string) {
	h.raw(`<input type="hidden" name="_csrf"`)
	h.attr("value", token)
	h.raw(">")
}
