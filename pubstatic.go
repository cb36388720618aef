// Package pubstatic serves a company blog as pre-rendered pages regenerated
// incrementally from a hosted content database.
//
// Every page is rendered once and cached with a staleness budget. Expired
// pages keep being served while a single background regeneration replaces
// them, and article paths that appear after the last build are rendered on
// first request. Change notifications and the admin page trigger immediate
// regeneration.
package pubstatic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/eringen/pubstatic/views"
)

// ViewFuncs holds the templ components the publisher renders pages with.
// Any nil field falls back to the package views.
type ViewFuncs struct {
	Index          func(site views.Site, page views.IndexPage) templ.Component
	Post           func(site views.Site, page views.PostPage) templ.Component
	NotFound       func(site views.Site) templ.Component
	ServerError    func(site views.Site) templ.Component
	AdminLogin     func(site views.Site, showError bool, csrfToken string) templ.Component
	AdminDashboard func(site views.Site, page views.AdminPage) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Index:          views.Index,
		Post:           views.Post,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
		AdminLogin:     views.AdminLogin,
		AdminDashboard: views.AdminDashboard,
	}
}

func (v ViewFuncs) merge(o ViewFuncs) ViewFuncs {
	if o.Index != nil {
		v.Index = o.Index
	}
	if o.Post != nil {
		v.Post = o.Post
	}
	if o.NotFound != nil {
		v.NotFound = o.NotFound
	}
	if o.ServerError != nil {
		v.ServerError = o.ServerError
	}
	if o.AdminLogin != nil {
		v.AdminLogin = o.AdminLogin
	}
	if o.AdminDashboard != nil {
		v.AdminDashboard = o.AdminDashboard
	}
	return v
}

// App is the central pubstatic application. It wires together the content
// store, page cache, publisher, handlers and background workers.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     ContentStore
	Cache     *PageCache
	Publisher *Publisher
	Views     ViewFuncs
	Logger    *slog.Logger
	Metrics   *Metrics

	backend      PageBackend
	loginLimiter *LoginLimiter
	prebuilder   *Prebuilder
	events       *EventSubscriber
	customRoutes []func(*App)
	staticDir    string
	closers      []func() error
	initialized  bool
}

// New creates an App from cfg. Defaults are filled in; nothing is opened
// until Init.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:    cfg,
		Echo:      e,
		Views:     DefaultViews(),
		staticDir: "public",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(cfg.LogLevel, os.Stdout)
	}
	return a
}

// Init opens the content store and page backend, builds the publisher and
// registers middleware and routes.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.Database)
		if err != nil {
			return fmt.Errorf("pubstatic: init store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	}

	if a.backend == nil {
		backend, err := a.openBackend(ctx)
		if err != nil {
			return err
		}
		a.backend = backend
	}

	if a.Config.MetricsEnabled {
		a.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	a.Cache = NewPageCache(a.backend, a.Config.Revalidate,
		WithCacheLogger(a.Logger),
		WithCacheMetrics(a.Metrics),
	)
	a.Publisher = NewPublisher(a.Store, a.Cache, a.Config, a.Views, a.Logger, a.Metrics)

	if a.Config.AdminPassword != "" {
		a.loginLimiter = NewLoginLimiter(5, time.Minute)
		a.closers = append(a.closers, a.loginLimiter.Close)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) openBackend(ctx context.Context) (PageBackend, error) {
	if a.Config.Redis.Addr == "" {
		return NewMemoryBackend(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	backend := NewRedisBackend(client, a.Config.Redis.Prefix)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := backend.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("pubstatic: connect redis %s: %w", a.Config.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.Logger.Info("using redis page cache", "addr", a.Config.Redis.Addr, "prefix", a.Config.Redis.Prefix)
	return backend, nil
}

// Start prebuilds every known page, starts the periodic re-enumeration and
// the change subscriber, then serves HTTP until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	a.Publisher.Prebuild(ctx)

	if a.Config.PrebuildEnabled() {
		pb, err := NewPrebuilder(a.Publisher, a.Config.PrebuildInterval, a.Logger)
		if err != nil {
			return err
		}
		pb.Start(ctx)
		a.prebuilder = pb
	}

	if a.Config.NATS.URL != "" {
		sub := NewEventSubscriber(a.Publisher, a.Logger)
		if err := sub.Connect(a.Config.NATS.URL, a.Config.NATS.Subject); err != nil {
			return err
		}
		a.events = sub
	}

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("serving", "addr", a.Config.Addr, "url", a.Config.URL, "revalidate", a.Config.Revalidate)
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

// Close stops background work and releases connections. Call this when the
// app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.prebuilder != nil {
		errs = append(errs, a.prebuilder.Stop())
	}
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.Cache != nil {
		a.Cache.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
