// Package server provides the HTTP bridge the dashboard page talks to.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/events"
	"github.com/aristath/sentinel-dashboard/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	CORSOrigins []string
	Data        *dataaccess.Facade
	EventBus    *events.Bus
	Visibility  *scheduler.Visibility
	Scheduler   *scheduler.Scheduler // optional; listed by /health
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	port       int
	data       *dataaccess.Facade
	eventBus   *events.Bus
	visibility *scheduler.Visibility
	scheduler  *scheduler.Scheduler
	startedAt  time.Time

	// baseCtx parents every request context; cancelling it ends open event streams.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Visibility == nil {
		cfg.Visibility = scheduler.NewVisibility()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		port:       cfg.Port,
		data:       cfg.Data,
		eventBus:   cfg.EventBus,
		visibility: cfg.Visibility,
		scheduler:  cfg.Scheduler,
		startedAt:  time.Now(),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.setupMiddleware(cfg.DevMode, cfg.CORSOrigins)
	s.setupRoutes()

	// No WriteTimeout: the event stream endpoints hold the connection open.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool, origins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json"))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived streams stay outside the request timeout.
		stream := NewEventsStreamHandler(s.eventBus, s.log)
		r.Get("/events/stream", stream.ServeHTTP)
		ws := NewEventsSocketHandler(s.eventBus, s.log)
		r.Get("/events/ws", ws.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			market := NewMarketHandlers(s.data, s.log)
			r.Get("/dashboard", market.HandleDashboard)
			r.Get("/stocks", market.HandleStocks)
			r.Get("/stocks/{ticker}", market.HandleStock)
			r.Get("/prediction/{ticker}", market.HandlePrediction)
			r.Post("/backtest", market.HandleBacktest)

			r.Route("/strategies", func(r chi.Router) {
				r.Get("/", market.HandleStrategies)
				r.Post("/", market.HandleCreateStrategy)
				r.Put("/{id}", market.HandleUpdateStrategy)
			})

			user := NewUserHandlers(s.data, s.log)
			r.Get("/portfolio/{userID}", user.HandlePortfolio)
			r.Post("/portfolio/transaction", user.HandleTransaction)
			r.Get("/watchlist/{userID}", user.HandleWatchlist)
			r.Post("/watchlist/add", user.HandleWatchlistAdd)
			r.Post("/watchlist/remove", user.HandleWatchlistRemove)
			r.Get("/user/{userID}", user.HandleUserData)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", user.HandleLogin)
				r.Post("/register", user.HandleRegister)
				r.Post("/logout", user.HandleLogout)
				r.Get("/session", user.HandleSession)
			})

			system := NewSystemHandlers(s.data, s.visibility, s.log)
			r.Get("/cache/keys", system.HandleCacheKeys)
			r.Delete("/cache", system.HandleCacheClear)
			r.Post("/visibility", system.HandleVisibility)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancelBase()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"session": s.data.Session().State,
		"cache":   s.data.Cache().Len(),
	}
	if s.scheduler != nil {
		body["jobs"] = s.scheduler.Jobs()
	}
	writeJSON(w, s.log, http.StatusOK, body)
}

// loggingMiddleware logs HTTP requests
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
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
