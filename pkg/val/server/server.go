// Package server exposes valuations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/komsit37/val/pkg/val/analyze"
	"github.com/komsit37/val/pkg/val/render"
	"github.com/komsit37/val/pkg/val/types"
)

type Config struct {
	Log            zerolog.Logger
	Analyzer       analyze.Runner
	Port           int
	RequestTimeout time.Duration
}

type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	analyzer analyze.Runner
	session  *analyze.Session
	port     int
}

func New(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		analyzer: cfg.Analyzer,
		session:  analyze.NewSession(cfg.Analyzer),
		port:     cfg.Port,
	}
	s.setupMiddleware(cfg.RequestTimeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware(timeout time.Duration) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(timeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/analyze/{ticker}", s.handleAnalyze)
		r.Get("/analyze/{ticker}/chart.png", s.handleChart)
		r.Route("/session", func(r chi.Router) {
			r.Post("/analyze/{ticker}", s.handleSessionAnalyze)
			r.Get("/latest", s.handleSessionLatest)
		})
	})
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
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
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/analyze/{ticker}
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	res, err := s.analyzer.Analyze(r.Context(), ticker)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/analyze/{ticker}/chart.png
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	res, err := s.analyzer.Analyze(r.Context(), ticker)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.NewChartRenderer().Render(w, []*types.AnalysisResult{res}, render.RenderOptions{}); err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to render chart")
	}
}

// POST /api/session/analyze/{ticker}
func (s *Server) handleSessionAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	res, err := s.session.Trigger(r.Context(), ticker)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/session/latest
func (s *Server) handleSessionLatest(w http.ResponseWriter, _ *http.Request) {
	res := s.session.Latest()
	if res == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no analysis yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analyze.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, analyze.ErrAnalysisFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	var aerr *analyze.AnalysisError
	if errors.As(err, &aerr) {
		s.log.Warn().Str("detail", aerr.Detail()).Int("status", status).Msg("Analysis request failed")
	} else if status >= 500 {
		s.log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
