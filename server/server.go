// Package server exposes the detection pipeline over HTTP: authenticated
// detection, user accounts and best-effort request persistence. The model
// artifact loads at startup and a contract mismatch refuses to serve.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/sonaguard/sonaguard/classifier"
	"github.com/sonaguard/sonaguard/detect"
	"github.com/sonaguard/sonaguard/logging"
)

// Server wires the detector, the store and the HTTP surface together
type Server struct {
	config   *Config
	engine   *gin.Engine
	detector *detect.Detector
	store    *Store
	auth     *AuthManager
	sem      *semaphore.Weighted
	httpSrv  *http.Server
}

// New builds a server from configuration. Model loading is fail-fast: a
// missing artifact or a feature-contract mismatch aborts startup instead
// of producing corrupt verdicts later. Persistence failure only degrades
// the service (no logging, no accounts) and is reported as a warning.
func New(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	model, err := classifier.Load(config.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("model startup check failed: %w", err)
	}

	detector, err := detect.NewDetector(model)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}

	var store *Store
	if config.Database.Path != "" {
		store, err = NewStore(config.Database.Path)
		if err != nil {
			logging.Warn("Persistence unavailable, continuing without it", logging.Fields{
				"path":  config.Database.Path,
				"error": err.Error(),
			})
			store = nil
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   config,
		engine:   engine,
		detector: detector,
		store:    store,
		auth:     NewAuthManager(config.Auth.JWTSecret, config.Auth.TokenTTL),
		sem:      semaphore.NewWeighted(int64(config.Limits.MaxConcurrentExtractions)),
	}
	s.registerRoutes()

	return s, nil
}

// Run serves until the context is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening", logging.Fields{"addr": addr})
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logging.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logging.Warn("Failed to close store", logging.Fields{"error": err.Error()})
		}
	}

	return nil
}

// Handler exposes the HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.engine
}
