package server

import (
	"context"
	"net/http"
	"time"

	"DrawdownSentinel/internal/advisor"
	"DrawdownSentinel/internal/ammo"
	"DrawdownSentinel/internal/collector"
	"DrawdownSentinel/internal/metrics"
	"DrawdownSentinel/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// MarketReporter produces the multi-ticker market report.
type MarketReporter interface {
	Report(ctx context.Context, symbols []string) collector.MarketReport
}

// Config holds server configuration
type Config struct {
	Addr        string
	CORSOrigins []string
	// Symbols are reported by /api/market when no ticker is given.
	Symbols []string
	Log     zerolog.Logger

	Store   *store.Store
	Advisor *advisor.Service
	Ammo    *ammo.Manager
	Market  MarketReporter
	Metrics *metrics.Registry
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	symbols []string

	store   *store.Store
	advisor *advisor.Service
	ammo    *ammo.Manager
	market  MarketReporter
	metrics *metrics.Registry
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		symbols: cfg.Symbols,
		store:   cfg.Store,
		advisor: cfg.Advisor,
		ammo:    cfg.Ammo,
		market:  cfg.Market,
		metrics: cfg.Metrics,
	}

	s.setupMiddleware(cfg.CORSOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(45 * time.Second))

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/market", s.handleMarket)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
			r.Get("/ammo", s.handleGetAmmo)
			r.Post("/ammo/reset", s.handleResetAmmo)
			r.Post("/preview", s.handlePreview)
			r.Post("/updates", s.handleSaveUpdate)
			r.Get("/snapshots", s.handleListSnapshots)
			r.Get("/snapshots/{snapshotID}/contribution", s.handleGetContribution)
			r.Get("/recommendations", s.handleListRecommendations)
			r.Get("/market-states", s.handleListMarketStates)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
