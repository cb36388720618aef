package pubstatic

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubstatic/views"
)

func (a *App) setupAdminRoutes() {
	g := a.Echo.Group("/admin", a.adminMiddleware()...)
	g.GET("", a.handleAdmin)
	g.POST("/login", a.handleAdminLogin)
	g.POST("/logout", handleAdminLogout)
	g.POST("/revalidate", a.handleAdminRevalidate)
	g.POST("/purge", a.handleAdminPurge)
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(a.Publisher.site(), false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	a.loginLimiter.Record(ip)
	a.Logger.Warn("admin login failed", "ip", ip)
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(a.Publisher.site(), true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

// handleAdminRevalidate regenerates one article, or the listing pages when
// no slug is given.
func (a *App) handleAdminRevalidate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	ctx := c.Request().Context()
	slug := strings.Trim(strings.TrimSpace(c.FormValue("slug")), "/")
	slug = strings.TrimPrefix(slug, "blog/")
	if slug == "" {
		if err := a.Publisher.RevalidateIndex(ctx); err != nil {
			a.Logger.Warn("admin revalidate failed", "path", indexPath, "error", err)
			return redirectAdmin(c, "Index revalidation failed, previous pages kept.")
		}
		return redirectAdmin(c, "Index revalidated.")
	}
	if err := a.Publisher.Revalidate(ctx, slug); err != nil {
		a.Logger.Warn("admin revalidate failed", "path", PostPath(slug), "error", err)
		return redirectAdmin(c, "Revalidation of "+PostPath(slug)+" failed, previous page kept.")
	}
	return redirectAdmin(c, PostPath(slug)+" revalidated.")
}

func (a *App) handleAdminPurge(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	slug := strings.TrimPrefix(strings.Trim(strings.TrimSpace(c.FormValue("slug")), "/"), "blog/")
	if slug == "" {
		return redirectAdmin(c, "Slug is required to purge.")
	}
	if err := a.Publisher.Purge(c.Request().Context(), slug); err != nil {
		return err
	}
	return redirectAdmin(c, PostPath(slug)+" purged.")
}

func redirectAdmin(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/admin?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	pages, err := a.Cache.Entries(c.Request().Context())
	if err != nil {
		return err
	}
	now := a.Cache.now()
	entries := make([]views.AdminEntry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, views.AdminEntry{
			Path:        p.Path,
			GeneratedAt: p.GeneratedAt,
			Age:         now.Sub(p.GeneratedAt),
			Stale:       !p.Fresh(now, a.Cache.TTL()),
		})
	}
	return Render(c, a.Views.AdminDashboard(a.Publisher.site(), views.AdminPage{
		Entries:    entries,
		KnownPaths: a.Publisher.KnownPaths(),
		Budget:     a.Publisher.Budget(),
		Message:    msg,
		CSRFToken:  CsrfToken(c),
	}))
}
