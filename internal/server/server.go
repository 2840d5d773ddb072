/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires storage, the sampling loop and the HTTP surfaces
// into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/farewatch/internal/api"
	"github.com/friendsincode/farewatch/internal/archive"
	"github.com/friendsincode/farewatch/internal/cache"
	"github.com/friendsincode/farewatch/internal/config"
	"github.com/friendsincode/farewatch/internal/db"
	"github.com/friendsincode/farewatch/internal/eventbus"
	"github.com/friendsincode/farewatch/internal/events"
	"github.com/friendsincode/farewatch/internal/sampler"
	"github.com/friendsincode/farewatch/internal/scheduler"
	"github.com/friendsincode/farewatch/internal/store"
	"github.com/friendsincode/farewatch/internal/taxiapi"
	"github.com/friendsincode/farewatch/internal/telemetry"
	"github.com/friendsincode/farewatch/internal/version"
)

// historyRetention bounds how long dispatched firings stay in the
// scheduler history.
const historyRetention = 7 * 24 * time.Hour

// Mode selects which parts of the service run in this process.
type Mode int

const (
	// ModeAll runs the admin API and the sampling loop.
	ModeAll Mode = iota
	// ModeAPI runs only the admin API.
	ModeAPI
	// ModeScheduler runs only the sampling loop.
	ModeScheduler
)

func (m Mode) String() string {
	switch m {
	case ModeAPI:
		return "api"
	case ModeScheduler:
		return "scheduler"
	default:
		return "all"
	}
}

func (m Mode) runsAPI() bool       { return m == ModeAll || m == ModeAPI }
func (m Mode) runsScheduler() bool { return m == ModeAll || m == ModeScheduler }

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	mode       Mode
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	store     *store.Store
	bus       *events.Bus
	publisher events.Publisher
	api       *api.API
	scheduler *scheduler.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, mode Mode, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		cfg:    cfg,
		mode:   mode,
		logger: logger.With().Str("mode", mode.String()).Logger(),
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	ctx := context.Background()

	tp, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "farewatch",
		ServiceVersion: version.Version,
		OTLPEndpoint:   s.cfg.OTLPEndpoint,
		Enabled:        s.cfg.TracingEnabled,
		SampleRate:     s.cfg.TracingSampleRate,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	s.DeferClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	})

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}

	if s.cfg.RedisEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		s.cache = cache.New(cacheCfg, s.logger)
		s.DeferClose(func() error { return s.cache.Close() })
	}

	s.store = store.New(database, s.cache, s.logger)

	s.publisher = s.bus
	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		nb := eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		s.publisher = nb
		s.DeferClose(nb.Close)
	}

	if s.mode.runsAPI() {
		s.api = api.New(s.store, s.publisher, []byte(s.cfg.JWTSigningKey), s.logger)
	}

	if s.mode.runsScheduler() {
		if err := s.initScheduler(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) initScheduler(ctx context.Context) error {
	arch, err := s.openArchive(ctx)
	if err != nil {
		return err
	}

	client := taxiapi.New(taxiapi.Config{
		BaseURL:           s.cfg.TaxiAPIURL,
		ClientID:          s.cfg.TaxiAPIClientID,
		APIKey:            s.cfg.TaxiAPIKey,
		Classes:           s.cfg.TaxiAPIClasses,
		RequestsPerSecond: s.cfg.TaxiAPIRPS,
	}, nil)

	loc := s.cfg.Location
	opts := []sampler.Option{
		sampler.WithPublisher(s.publisher),
		sampler.WithNow(func() time.Time { return time.Now().In(loc) }),
	}
	if arch != nil {
		opts = append(opts, sampler.WithArchive(arch))
	}
	smp := sampler.New(s.store, client, s.logger, opts...)

	s.scheduler = scheduler.New(s.store, smp, scheduler.Config{
		PollInterval: s.cfg.SchedulerPollInterval,
		FireWindow:   s.cfg.SchedulerFireWindow,
		WakeBuffer:   s.cfg.SchedulerWakeBuffer,
		Workers:      s.cfg.DispatchWorkers,
		QueueSize:    s.cfg.DispatchQueueSize,
		ExecTimeout:  s.cfg.ExecTimeout,
		Clock:        scheduler.RealClock{Location: loc},
	}, s.logger)
	return nil
}

// openArchive returns nil when archiving is disabled.
func (s *Server) openArchive(ctx context.Context) (*archive.Archive, error) {
	switch s.cfg.ArchiveBackend {
	case config.ArchiveFilesystem:
		s.logger.Info().Str("dir", s.cfg.ArchiveDir).Msg("archiving raw responses to filesystem")
		return archive.New(archive.NewFilesystemStore(s.cfg.ArchiveDir, s.logger), string(config.ArchiveFilesystem), s.logger), nil
	case config.ArchiveS3:
		st, err := archive.NewS3Store(ctx, archive.S3Config{
			Bucket:          s.cfg.S3Bucket,
			Region:          s.cfg.S3Region,
			Endpoint:        s.cfg.S3Endpoint,
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("open s3 archive: %w", err)
		}
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("archiving raw responses to s3")
		return archive.New(st, string(config.ArchiveS3), s.logger), nil
	default:
		return nil, nil
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Scheduler returns the sampling loop, nil in API mode.
func (s *Server) Scheduler() *scheduler.Service {
	return s.scheduler
}

// Store exposes storage for CLI commands sharing the server's wiring.
func (s *Server) Store() *store.Store {
	return s.store
}

// Start launches background workers.
func (s *Server) Start() {
	s.startBackgroundWorkers()
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	if s.bgCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("scheduler loop exited")
			}
		}()
	}

	if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					s.pruneHistory(now)
				}
			}
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	if s.cache != nil {
		sub := s.bus.Subscribe(events.EventRouteDeleted)
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			defer s.bus.Unsubscribe(events.EventRouteDeleted, sub)
			s.runCacheInvalidationListener(ctx, sub)
		}()
	}
}

// pruneHistory drops firings older than historyRetention.
func (s *Server) pruneHistory(now time.Time) {
	s.scheduler.History().Prune(now.Add(-historyRetention))
}

// runCacheInvalidationListener drops cached routes deleted here or, through
// NATS, by another process.
func (s *Server) runCacheInvalidationListener(ctx context.Context, deleted events.Subscriber) {
	s.logger.Debug().Msg("cache invalidation listener started")
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-deleted:
			if !ok {
				return
			}
			id, ok := routeIDFromPayload(payload)
			if !ok {
				continue
			}
			if err := s.cache.InvalidateRoute(ctx, id); err != nil {
				s.logger.Warn().Err(err).Int64("route_id", id).Msg("invalidate cached route")
			}
		}
	}
}

// routeIDFromPayload accepts the int64 published locally and the float64
// produced by decoding a NATS message.
func routeIDFromPayload(p events.Payload) (int64, bool) {
	switch v := p["route_id"].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", telemetry.Handler())

	if s.scheduler != nil {
		s.router.Get("/scheduler/status", s.handleSchedulerStatus)
	}

	if s.api != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   s.cfg.CORSAllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           300,
			}))
			s.api.Routes(r)
		})
	}
}
