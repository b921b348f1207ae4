// Package server exposes the engine over HTTP with gin.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/server/handlers"
	"github.com/chronofact/chronofact/pkg/telemetry"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	engine chronofact.Engine
	server *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, engine chronofact.Engine) *Server {
	return &Server{
		config: cfg,
		engine: engine,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(batchContextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine)
	entityHandler := handlers.NewEntityHandler(s.engine)
	factHandler := handlers.NewFactHandler(s.engine)
	queryHandler := handlers.NewQueryHandler(s.engine)
	ingestHandler := handlers.NewIngestHandler(s.engine)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		entities := v1.Group("/entities")
		{
			entities.POST("", entityHandler.Create)
			entities.POST("/resolve", entityHandler.Resolve)
			entities.POST("/merge", entityHandler.Merge)
			entities.GET("/:id", entityHandler.Get)
			entities.POST("/:id/aliases", entityHandler.AddAlias)
			entities.GET("/:id/timeline", entityHandler.Timeline)
		}

		factsGroup := v1.Group("/facts")
		{
			factsGroup.POST("", factHandler.Record)
			factsGroup.POST("/synthesize", factHandler.Synthesize)
			factsGroup.GET("/:id", factHandler.Get)
			factsGroup.POST("/:id/supersede", factHandler.Supersede)
			factsGroup.POST("/:id/corroborate", factHandler.Corroborate)
			factsGroup.POST("/:id/invalidate", factHandler.Invalidate)
		}

		v1.GET("/conflicts", factHandler.Conflicts)
		v1.POST("/conflicts/resolve", factHandler.ResolveConflict)

		v1.GET("/query", queryHandler.Query)
		v1.GET("/diff", queryHandler.Diff)

		ingest := v1.Group("/ingest")
		{
			ingest.POST("/text", ingestHandler.Text)
			ingest.POST("/drafts", ingestHandler.Drafts)
		}
	}
}

// Start starts the server
func (s *Server) Start() error {
	fmt.Printf("Starting server on %s\n", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println("Stopping server...")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// batchContextMiddleware tags the request context for telemetry
func batchContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if batchID := c.GetHeader("X-Batch-ID"); batchID != "" {
			ctx = telemetry.WithBatchID(ctx, batchID)
		}
		ctx = telemetry.WithOperation(ctx, c.Request.Method+" "+c.FullPath())

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
