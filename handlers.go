package pubstatic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
)

const headerXCache = "X-Cache"

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", a.handleHealth)
	if a.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	e.GET("/", a.handleIndex)
	e.GET("/index.json", a.handleIndexData)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blog/:slug", a.handlePost)

	if a.Config.AdminPassword != "" {
		a.setupAdminRoutes()
	}
}

// writePage sends a cached page with its cache state and a shared-cache
// lifetime equal to the staleness budget.
func (a *App) writePage(c echo.Context, page Page, status CacheStatus) error {
	h := c.Response().Header()
	h.Set(headerXCache, string(status))
	h.Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", int(a.Config.Revalidate/time.Second)))
	if !page.GeneratedAt.IsZero() {
		h.Set("Last-Modified", page.GeneratedAt.UTC().Format(http.TimeFormat))
	}
	return c.Blob(http.StatusOK, page.ContentType, page.Body)
}

func (a *App) handleIndex(c echo.Context) error {
	page, status, err := a.Publisher.RenderIndex(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return a.unavailable(c, err)
	}
	return a.writePage(c, page, status)
}

func (a *App) handleIndexData(c echo.Context) error {
	page, status, err := a.Publisher.RenderIndexData(c.Request().Context())
	if err != nil {
		return a.unavailable(c, err)
	}
	return a.writePage(c, page, status)
}

func (a *App) handlePost(c echo.Context) error {
	page, status, err := a.Publisher.RenderPost(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Publisher.site()))
	}
	if err != nil {
		return a.unavailable(c, err)
	}
	return a.writePage(c, page, status)
}

func (a *App) handleSitemap(c echo.Context) error {
	body, err := a.Publisher.Sitemap(c.Request().Context())
	if err != nil {
		return a.unavailable(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (a *App) handleFeed(c echo.Context) error {
	page, status, err := a.Publisher.RenderFeed(c.Request().Context())
	if err != nil {
		return a.unavailable(c, err)
	}
	return a.writePage(c, page, status)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

// handleRobots serves robots.txt from the static dir, or a default that
// points crawlers at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	body := "User-agent: *\nAllow: /\n\nSitemap: " + BuildURL(a.Config.URL, "sitemap.xml") + "\n"
	return c.String(http.StatusOK, body)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	checks := map[string]string{"store": "ok", "cache": "ok"}
	healthy := true
	if p, ok := a.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			healthy = false
		}
	}
	if p, ok := a.backend.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, checks)
}

// unavailable answers a request whose page could not be produced and has
// nothing cached to fall back on.
func (a *App) unavailable(c echo.Context, err error) error {
	a.Logger.Error("page unavailable", "path", c.Request().URL.Path, "error", err)
	return RenderStatus(c, http.StatusServiceUnavailable, a.Views.ServerError(a.Publisher.site()))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Publisher.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "path", c.Request().URL.Path, "error", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Publisher.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
