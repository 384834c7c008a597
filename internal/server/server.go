// Package server exposes the classification engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hejijunhao/mailsort/internal/config"
	"github.com/hejijunhao/mailsort/internal/engine/catalog"
	"github.com/hejijunhao/mailsort/internal/model"
)

// Engine is the part of engine.Engine the HTTP layer needs.
type Engine interface {
	Ready() bool
	Predict(text string) model.PredictionResult
	PredictBatch(texts []string) []model.PredictionResult
	Catalog() *catalog.Catalog
}

// Server serves the classification API.
type Server struct {
	engine  Engine
	cfg     config.ServerConfig
	logger  *slog.Logger
	metrics *metrics
	router  *gin.Engine
}

// New builds a server and its routes. A nil logger uses slog.Default.
func New(eng Engine, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(),
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(RequestID())
	router.Use(Logger(s.logger))
	router.Use(Recovery(s.logger))
	router.Use(CORS())
	router.Use(s.metrics.middleware())

	router.GET("/metrics", gin.WrapH(s.metrics.handler()))

	api := router.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/categories", s.categories)
		api.POST("/predict", s.predict)
		api.POST("/predict/batch", s.predictBatch)
	}

	return router
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String(), "model_loaded", s.engine.Ready())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("server exited")
	return nil
}
