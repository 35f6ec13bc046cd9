// file: internal/server/server.go
// version: 1.1.0
// guid: 5e9a3c7b-1f4d-4b8e-a6c2-8d0f5b3e7a9c

// Package server exposes the library tree, playback state, and async
// operations over a gin HTTP API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laosuan/BookPlayer/internal/command"
	"github.com/laosuan/BookPlayer/internal/library"
	"github.com/laosuan/BookPlayer/internal/metrics"
	"github.com/laosuan/BookPlayer/internal/operations"
	syncengine "github.com/laosuan/BookPlayer/internal/sync"
)

// Server wires the HTTP API over the library service, sync engine, operation
// queue, and command router. engine and router may be nil when no remote or
// player is configured.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	svc        *library.Service
	engine     *syncengine.Engine
	queue      *operations.Queue
	commands   *command.Router
}

// NewServer creates a new server instance.
func NewServer(svc *library.Service, engine *syncengine.Engine, queue *operations.Queue, commands *command.Router) *Server {
	router := gin.Default()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		svc:      svc,
		engine:   engine,
		queue:    queue,
		commands: commands,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	metrics.Register()
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/api/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/items", s.listItems)
		api.GET("/item/*path", s.getItem)
		api.PATCH("/item/*path", s.renameItem)
		api.POST("/move", s.moveItems)
		api.POST("/delete", s.deleteItems)
		api.GET("/last-played", s.getLastPlayed)
		api.PUT("/last-played", s.setLastPlayed)
		api.POST("/playback", s.recordPlayback)
		api.GET("/search", s.searchItems)
		api.GET("/theme", s.getTheme)
		api.PUT("/theme", s.setTheme)

		api.GET("/bookmarks", s.listBookmarks)
		api.POST("/bookmarks", s.createBookmark)
		api.DELETE("/bookmarks", s.deleteBookmark)

		api.POST("/command", s.handleCommand)

		api.POST("/operations/import", s.startImport)
		api.POST("/operations/sync", s.startSync)
		api.GET("/operations/:id/status", s.getOperationStatus)
		api.DELETE("/operations/:id", s.cancelOperation)
		api.GET("/operations/active", s.listActiveOperations)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	count, err := s.svc.Store().CountItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	metrics.SetItemsTotal(count)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "items": count})
}
