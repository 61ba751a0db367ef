// Package server exposes the genealogy graph over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carleson/genlib/internal/application/handlers"
)

const shutdownTimeout = 10 * time.Second

// Handlers groups the use cases served by the API. Without a search service
// the search route answers 503.
type Handlers struct {
	Persons       *handlers.PersonHandler
	Relationships *handlers.RelationshipHandler
	Trees         *handlers.TreeHandler
	Imports       *handlers.ImportHandler
	Search        *handlers.SearchHandler
}

// Server is the HTTP API.
type Server struct {
	h      Handlers
	logger *slog.Logger
	router *gin.Engine
}

// New creates a server. A nil logger means slog.Default().
func New(h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if h.Search == nil {
		h.Search = handlers.NewSearchHandler(nil)
	}
	s := &Server{h: h, logger: logger}
	s.router = s.setupRouter()
	return s
}

// Router returns the gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), requestMetrics())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/persons", s.handleListPersons)
		api.GET("/persons/:ref", s.handleShowPerson)
		api.GET("/persons/:ref/relationships", s.handleRelationships)
		api.GET("/persons/:ref/tree", s.handleTree)
		api.POST("/relationships", s.handleCreateRelationship)
		api.POST("/import", s.handleImport)
		api.GET("/search", s.handleSearch)
	}

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
