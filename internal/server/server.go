// internal/server/server.go
// Package server exposes the engine over HTTP: the planning contract at
// /api/v1/chat, hosted-engine turns at /api/v1/turn, snapshot and health
// probes, and a WebSocket flow stream that mirrors the engine's timeline in
// real time.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
	"github.com/xkilldash9x/docent/internal/orchestrator"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

// Server hosts the HTTP API around one engine and one document tree.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	engine   *orchestrator.Orchestrator
	handlers *Handlers
	hub      *FlowHub
	limiter  *rate.Limiter
	router   chi.Router

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// New initializes the server around an assembled engine. The flow hub is
// created here and registered as a sink, so every turn run through any entry
// point shows up on the stream.
func New(cfg config.ServerConfig, logger *zap.Logger, engine *orchestrator.Orchestrator, extractor *snapshot.Extractor, planner schemas.PlanningService) (*Server, error) {
	if logger == nil || engine == nil || extractor == nil || planner == nil {
		return nil, fmt.Errorf("cannot initialize server with nil dependencies")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		engine:   engine,
		handlers: NewHandlers(logger, engine, extractor, planner),
		hub:      NewFlowHub(logger),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
	engine.AddSink(s.hub)
	s.router = s.routes()

	return s, nil
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes builds the chi router. The WebSocket route stays outside the request
// logger and the rate limiter; long-lived upgraded connections fit neither.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/flow", s.hub.serveWS)

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(s.logger))
		r.Get("/healthz", s.handlers.HandleHealthCheck)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(corsMiddleware)
			r.Use(s.rateLimit)
			r.Post("/chat", s.handlers.HandleChat)
			r.Post("/turn", s.handlers.HandleTurn)
			r.Get("/snapshot", s.handlers.HandleSnapshot)
		})
	})

	return r
}

// Start binds the listener and serves until ctx is canceled, then drains
// connections within the configured shutdown window. The flow hub runs for
// exactly as long as the server does.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	httpServer := &http.Server{Handler: s.router}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("HTTP server starting", zap.String("address", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	s.logger.Info("HTTP server stopped.")
	return err
}

// ListenAddr reports the bound address, empty before Start has bound one.
// With a configured port of 0 this is how callers learn the real port.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// rateLimit applies the shared token bucket to the JSON API.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.handlers.respondError(w, http.StatusTooManyRequests, schemas.ErrCodeRateLimited, "Too many requests, slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// corsMiddleware provides the permissive CORS the embedded widget needs when
// a page is served from a different origin during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
