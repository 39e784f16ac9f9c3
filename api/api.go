// Package api serves the monitoring projections over HTTP as JSON.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/jobstore/monitor"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API wires the HTTP handlers to a monitoring API.
type API struct {
	mon    *monitor.API
	pinger Pinger
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithPinger enables the /readyz store check.
func WithPinger(p Pinger) Option {
	return func(a *API) { a.pinger = p }
}

// New creates an API over mon.
func New(mon *monitor.API, opts ...Option) *API {
	a := &API{mon: mon, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a router with every route registered.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(a.logger))
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the monitoring routes on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)

	r.Get("/stats", a.stats)
	r.Get("/servers", a.servers)
	r.Get("/history/{type}/daily", a.dailyHistory)
	r.Get("/history/{type}/hourly", a.hourlyHistory)

	r.Route("/queues", func(r chi.Router) {
		r.Get("/", a.queues)
		r.Get("/{queue}/enqueued", a.enqueuedJobs)
		r.Get("/{queue}/fetched", a.fetchedJobs)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/processing", a.processingJobs)
		r.Get("/scheduled", a.scheduledJobs)
		r.Get("/succeeded", a.succeededJobs)
		r.Get("/failed", a.failedJobs)
		r.Get("/deleted", a.deletedJobs)
		r.Get("/{id}", a.jobDetails)
	})
}

// RequestLogger logs every request with method, path, status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
