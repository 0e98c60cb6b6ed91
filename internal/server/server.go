// Package server exposes the extraction pipeline over HTTP: the extract
// endpoint, the cache admin surface, health and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/logger"
	"localbiz-extractor/internal/orchestrator"
)

type Server struct {
	cfg     config.ServerConfig
	orch    *orchestrator.Orchestrator
	log     logger.Logger
	version string

	httpServer *http.Server
}

func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, log logger.Logger, version string) *Server {
	s := &Server{
		cfg:     cfg,
		orch:    orch,
		log:     log,
		version: version,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /api/cache", s.handleCacheClear)
	mux.HandleFunc("POST /api/cache/cleanup", s.handleCacheCleanup)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", map[string]interface{}{"addr": s.cfg.Addr()})
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listener and waits for active handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
