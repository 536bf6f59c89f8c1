// Package server exposes the risk pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/lox/transaction-risk-analyzer/internal/search"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

const (
	DefaultAddr          = ":8000"
	DefaultAllowedOrigin = "http://localhost:3000"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Scorer runs a risk query
type Scorer interface {
	Score(ctx context.Context, query types.Query) ([]types.SearchResult, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
}

func NewConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		AllowedOrigins: []string{DefaultAllowedOrigin},
	}
}

func (c Config) WithAddr(addr string) Config {
	c.Addr = addr
	return c
}

func (c Config) WithAllowedOrigins(origins ...string) Config {
	c.AllowedOrigins = origins
	return c
}

type Server struct {
	scorer Scorer
	config Config
	logger *log.Logger
}

func New(scorer Scorer, config Config, logger *log.Logger) *Server {
	return &Server{
		scorer: scorer,
		config: config,
		logger: logger,
	}
}

type searchRequest struct {
	Text      string           `json:"text"`
	MinAmount *decimal.Decimal `json:"min_amount"`
}

type searchResponse struct {
	Results []types.SearchResult `json:"results"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Handler returns the routes wrapped in CORS and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /search", s.handleSearch)
	return s.withLogging(s.withCORS(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.config.Addr, "allowed_origins", s.config.AllowedOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Fraud Detection API running"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: search.ErrEmptyQuery.Error()})
		return
	}

	query := types.NewQuery(req.Text)
	if req.MinAmount != nil {
		query.MinAmount = *req.MinAmount
	}

	results, err := s.scorer.Score(r.Context(), query)
	if err != nil {
		s.logger.Error("Failed to score query", "query", req.Text, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(s.config.AllowedOrigins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
