// cmd/server/server.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/folio/internal/api"
	"github.com/codr1/folio/internal/api/auth"
	"github.com/codr1/folio/internal/api/authz"
	availabilityapi "github.com/codr1/folio/internal/api/availability"
	"github.com/codr1/folio/internal/availability"
	"github.com/codr1/folio/internal/config"
	"github.com/codr1/folio/internal/metrics"
	"github.com/codr1/folio/internal/ratelimit"
	"github.com/codr1/folio/internal/scheduler"
	"github.com/codr1/folio/internal/store"
)

// app holds the long-lived collaborators behind the HTTP surface.
type app struct {
	cfg       *config.Config
	store     store.Store
	service   *availability.Service
	gate      authz.Gate
	limiter   *ratelimit.Limiter
	throttle  *ratelimit.Throttle
	metrics   *metrics.Recorder
	scheduler *scheduler.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}

	a := &app{
		cfg:   cfg,
		store: st,
		gate:  auth.CookieGate{},
		limiter: ratelimit.New(&ratelimit.Config{
			MaxAttempts:  cfg.Security.LoginMaxAttempts,
			Lockout:      cfg.Security.LoginLockout,
			MaxIPPerHour: cfg.Security.LoginMaxIPPerHour,
		}),
		throttle: ratelimit.NewThrottle(cfg.Security.MutationsPerMinute),
	}

	// A nil *Recorder must not reach the service as a non-nil Observer.
	var observer availability.Observer
	var pruneObserver scheduler.PruneObserver
	if cfg.Features.EnableMetrics {
		a.metrics = metrics.New()
		observer = a.metrics
		pruneObserver = a.metrics
	}

	a.service = availability.NewService(st, availability.Options{
		Location:   loc,
		BookingURL: cfg.Availability.BookingURL,
		Observer:   observer,
	})

	a.scheduler, err = scheduler.New(loc)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	err = scheduler.RegisterPruneJob(a.scheduler, scheduler.PruneJob{
		Pruner:        a.service,
		RetentionDays: cfg.Availability.RetentionDays,
		Cron:          cfg.Availability.PruneCron,
		Observer:      pruneObserver,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	auth.InitHandlers(cfg, a.limiter)
	availabilityapi.InitHandlers(a.service, availability.FeedOptions{
		CalendarName: cfg.Availability.CalendarName,
		WindowDays:   cfg.Availability.ICSWindowDays,
	})

	return a, nil
}

// Close stops background work and releases the store.
func (a *app) Close() error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.throttle != nil {
		a.throttle.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newServer(cfg *config.Config, a *app) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      newHandler(a),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func newHandler(a *app) http.Handler {
	router := http.NewServeMux()
	registerRoutes(router, a)

	var observer api.RequestObserver
	if a.metrics != nil {
		observer = a.metrics
	}

	// Setup middleware chain
	return api.ChainMiddleware(
		router,
		api.WithRecovery,
		api.WithObservedLogging(observer),
		api.WithAuth(a.gate),
		api.WithRequestID,
	)
}

func registerRoutes(mux *http.ServeMux, a *app) {
	admin := func(h http.HandlerFunc) http.Handler {
		return api.ChainMiddleware(h,
			api.WithAdminAuth,
			api.WithThrottle(a.throttle, a.cfg.Security.TrustProxy),
		)
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	// Auth routes
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)

	// Availability routes
	mux.HandleFunc("GET /api/v1/availability", availabilityapi.HandleGetAvailability)
	mux.Handle("POST /api/v1/availability", admin(availabilityapi.HandlePutAvailability))
	mux.Handle("PUT /api/v1/availability/bulk", admin(availabilityapi.HandleBulkPutAvailability))
	mux.Handle("DELETE /api/v1/availability", admin(availabilityapi.HandleDeleteAvailability))
	mux.Handle("DELETE /api/v1/availability/{date}", admin(availabilityapi.HandleDeleteAvailability))
	mux.HandleFunc("GET /api/v1/availability/stats", availabilityapi.HandleGetStats)
	mux.HandleFunc("GET /api/v1/availability/calendar", availabilityapi.HandleGetCalendar)
	mux.HandleFunc("GET /api/v1/availability/feed.ics", availabilityapi.HandleGetFeed)

	// Template routes
	mux.HandleFunc("GET /api/v1/availability/templates", availabilityapi.HandleGetTemplates)
	mux.Handle("POST /api/v1/availability/templates", admin(availabilityapi.HandlePutTemplate))
	mux.Handle("DELETE /api/v1/availability/templates", admin(availabilityapi.HandleDeleteTemplate))
	mux.Handle("DELETE /api/v1/availability/templates/{name}", admin(availabilityapi.HandleDeleteTemplate))
}
