// Package web is the console's HTML front end. Each resource gets a list,
// a create/edit form and a delete confirmation, all rendered on the server
// from the session's resource manager.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/audit"
	"github.com/emr/console/internal/platform/db"
	"github.com/emr/console/internal/platform/middleware"
	"github.com/emr/console/internal/platform/telemetry"
	"github.com/emr/console/internal/platform/websocket"
	"github.com/emr/console/internal/resource"
	"github.com/emr/console/pkg/pagination"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Options configures a Server.
type Options struct {
	Resources []entity.Resource
	// Base is the manager configuration shared by every session. Its
	// Notifier is replaced per session.
	Base        resource.Config
	IdleTimeout time.Duration
	// Secure enables HSTS and https-only cookies.
	Secure bool
	// RequestTimeout bounds each page, including its backend calls.
	RequestTimeout time.Duration
	RateLimit      middleware.RateLimitConfig
	// Registry receives the HTTP collectors and is served on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
	// Journal backs the /audit page. Nil hides it.
	Journal audit.Lister
	// Pool backs /health/db. Nil hides it.
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

// Server is the console's HTTP server.
type Server struct {
	echo     *echo.Echo
	hub      *websocket.Hub
	sessions *Sessions
	logger   zerolog.Logger
}

// New builds the server and registers every route.
func New(opts Options) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	hub := websocket.NewHub(opts.Logger)
	sessions := NewSessions(SessionsConfig{
		Base:        opts.Base,
		Publisher:   hub,
		IdleTimeout: opts.IdleTimeout,
		Secure:      opts.Secure,
		Logger:      opts.Logger,
	})

	// Global middleware
	e.Use(middleware.Recovery(opts.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(opts.Logger))
	e.Use(middleware.SecurityHeaders(opts.Secure))
	e.Use(middleware.BodyLimit("1M", "10M"))
	if opts.Registry != nil {
		prom, err := middleware.NewPrometheus(opts.Registry)
		if err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
		e.Use(prom.Middleware())
	}
	e.Use(telemetry.Middleware("emr-console"))
	if opts.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(opts.RequestTimeout))
	}
	rl := opts.RateLimit
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rl))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})
	if opts.Pool != nil {
		e.GET("/health/db", db.HealthHandler(opts.Pool))
	}
	if opts.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	e.StaticFS("/static", static)

	websocket.NewHandler(hub, sessions.SessionID).RegisterRoutes(e)

	nav := make([]NavItem, 0, len(opts.Resources))
	for _, r := range opts.Resources {
		m := r.Describe()
		nav = append(nav, NavItem{Slug: m.Slug, Label: m.Plural})
	}

	pages := e.Group("", sessions.Middleware())
	pages.GET("/", func(c echo.Context) error {
		sess := sessionFrom(c)
		return c.Render(http.StatusOK, tmplIndex, Page{
			Title:  "Resources",
			Nav:    nav,
			Toasts: sess.Toasts.Drain(),
			Body:   nav,
		})
	})
	for _, r := range opts.Resources {
		NewResourceHandler(r, sessions, hub, renderer, nav, opts.Logger).RegisterRoutes(pages)
	}
	if opts.Journal != nil {
		pages.GET("/audit", auditHandler(opts.Journal, nav))
	}

	return &Server{echo: e, hub: hub, sessions: sessions, logger: opts.Logger}, nil
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Sessions returns the session registry.
func (s *Server) Sessions() *Sessions { return s.sessions }

// Hub returns the websocket hub.
func (s *Server) Hub() *websocket.Hub { return s.hub }

// Start serves on addr and sweeps idle sessions until Shutdown. It returns
// nil after a graceful shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.sessions.Run(ctx, time.Minute)

	s.logger.Info().Str("addr", addr).Msg("starting console")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// every session's managers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.sessions.Close()
	return err
}

const auditPageSize = 25

func auditHandler(journal audit.Lister, nav []NavItem) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := sessionFrom(c)
		page, _ := strconv.Atoi(c.QueryParam("page"))
		if page < 0 {
			page = 0
		}
		if page > math.MaxInt/auditPageSize {
			page = math.MaxInt / auditPageSize
		}

		entries, total, err := journal.List(c.Request().Context(), auditPageSize, page*auditPageSize)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to read audit journal")
		}
		last := 0
		if total > 0 {
			last = (total - 1) / auditPageSize
		}
		if page > last {
			return c.Redirect(http.StatusSeeOther, "/audit?page="+strconv.Itoa(last))
		}

		body := AuditPage{Entries: make([]AuditRow, 0, len(entries))}
		for _, e := range entries {
			body.Entries = append(body.Entries, AuditRow{
				At:        e.At,
				Resource:  e.Resource,
				Kind:      e.Kind,
				RecordID:  e.RecordID,
				Outcome:   string(e.Outcome),
				Message:   e.Message,
				RequestID: e.RequestID,
			})
		}

		meta := pagination.Meta{Page: page, PerPage: auditPageSize, LastPage: last, Total: total}
		for _, l := range pagination.Links("/audit", meta, nil) {
			switch l.Relation {
			case "next":
				body.Next = l.URL
			case "previous":
				body.Prev = l.URL
			}
		}
		body.Summary = fmt.Sprintf("Page %d of %d, %d %s", page+1, last+1, total, plural(total, "entry", "entries"))

		return c.Render(http.StatusOK, tmplAudit, Page{
			Title:  "Audit journal",
			Nav:    nav,
			Toasts: sess.Toasts.Drain(),
			Body:   body,
		})
	}
}
