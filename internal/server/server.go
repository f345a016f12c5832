package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/server/handler"
	"github.com/alanyoungcy/marketresolver/internal/server/middleware"
	"github.com/alanyoungcy/marketresolver/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit is the number of requests per client IP per RateWindow; zero
	// disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Emails may be nil, which leaves the email route unregistered.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Markets     *handler.MarketHandler
	Resolutions *handler.ResolutionHandler
	History     *handler.HistoryHandler
	Emails      *handler.EmailHandler
}

// Server is the HTTP + WebSocket API of the resolver.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil,
// and so may wsHub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/refresh", handlers.Markets.RefreshMarket)
	mux.HandleFunc("GET /api/home", handlers.Markets.GetHome)
	mux.HandleFunc("GET /api/feed/recommended", handlers.Markets.GetRecommended)
	mux.HandleFunc("GET /api/markets/{id}/resolutions", handlers.History.ListResolutions)
	mux.HandleFunc("GET /api/markets/{id}/archives", handlers.History.ListArchives)
	mux.HandleFunc("GET /api/markets/{id}/archives/{name}", handlers.History.GetArchive)

	rs := handlers.Resolutions
	mux.HandleFunc("POST /api/resolutions/sessions", rs.OpenSession)
	mux.HandleFunc("GET /api/resolutions/sessions/{id}", rs.GetSession)
	mux.HandleFunc("PUT /api/resolutions/sessions/{id}/mode", rs.SetMode)
	mux.HandleFunc("PUT /api/resolutions/sessions/{id}/choices/{answerId}", rs.Choose)
	mux.HandleFunc("DELETE /api/resolutions/sessions/{id}/choices/{answerId}", rs.Deselect)
	mux.HandleFunc("POST /api/resolutions/sessions/{id}/submit", rs.Submit)
	mux.HandleFunc("DELETE /api/resolutions/sessions/{id}", rs.CloseSession)

	if handlers.Emails != nil {
		mux.HandleFunc("POST /api/emails/{kind}", handlers.Emails.Send)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
