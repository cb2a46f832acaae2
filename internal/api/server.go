package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ib-trading-desk/internal/auth"
	"ib-trading-desk/internal/broker"
	"ib-trading-desk/internal/database"
	"ib-trading-desk/internal/events"
	"ib-trading-desk/internal/position"
	"ib-trading-desk/internal/pricing"
	"ib-trading-desk/internal/risk"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
}

// Deps bundles the services the HTTP server exposes. AuthService, TradeRepo
// and PositionStore may be nil when the corresponding subsystem is disabled.
type Deps struct {
	AuthService   *auth.Service
	Deriver       *pricing.Deriver
	RiskManager   *risk.Manager
	Tracker       *position.Tracker
	MarketData    broker.MarketData
	Submitter     broker.OrderSubmitter
	TradeRepo     *database.Repository
	PositionStore *database.PositionStateStore
	EventBus      *events.EventBus
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	deps        Deps
	authEnabled bool
	rateLimiter *RateLimiter // protects the gateway from request bursts
	hub         *WSHub
	logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      config,
		deps:        deps,
		authEnabled: deps.AuthService != nil,
		rateLimiter: NewRateLimiter(120, time.Minute),
		hub:         NewWSHub(logger),
		logger:      logger.With().Str("component", "APIServer").Logger(),
	}

	server.setupRoutes()

	go server.hub.Run()
	if deps.EventBus != nil {
		deps.EventBus.SubscribeAll(func(event events.Event) {
			server.hub.BroadcastEvent(event)
		})
	}

	return server
}

// rateLimitMiddleware rate limits requests by endpoint
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	// Endpoints served from in-process state never reach the gateway.
	noRateLimitPaths := map[string]bool{
		"/api/positions":         true,
		"/api/positions/history": true,
		"/api/positions/:symbol": true,
		"/api/risk/status":       true,
		"/api/trades":            true,
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if noRateLimitPaths[path] {
			c.Next()
			return
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Auth routes (public, no authentication required)
	if s.authEnabled {
		authGroup := s.router.Group("/api/auth")
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.POST("/logout", s.handleLogout)
	}

	// Auth status endpoint (always available)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"auth_enabled": s.authEnabled,
		})
	})

	// API routes (protected when auth is enabled)
	api := s.router.Group("/api")
	if s.authEnabled {
		api.Use(auth.Middleware(s.deps.AuthService.GetJWTManager()))
	}
	api.Use(s.rateLimitMiddleware())

	{
		// Order endpoints
		api.POST("/orders/preview", s.handlePreviewOrder)
		api.POST("/orders", s.handlePlaceOrder)
		api.GET("/orders/suggest", s.handleSuggestOrder)

		// Position endpoints
		api.GET("/positions", s.handleGetPositions)
		api.GET("/positions/history", s.handleGetPositionHistory)
		api.GET("/positions/:symbol", s.handleGetPosition)
		api.POST("/positions/:symbol/close", s.handleClosePosition)
		api.PUT("/positions/:symbol/price", s.handleUpdatePositionPrice)

		// Risk and account endpoints
		api.GET("/risk/status", s.handleRiskStatus)
		api.GET("/account", s.handleAccountSummary)

		// Trade journal
		api.GET("/trades", s.handleGetTrades)

		// Market data passthrough
		api.GET("/quotes/:symbol", s.handleGetQuote)
	}

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)

	// Catch-all for undefined API routes
	s.router.NoRoute(func(c *gin.Context) {
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(http.StatusNotFound, gin.H{
				"error":  "API endpoint not found",
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
			return
		}
		c.Status(http.StatusNotFound)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "healthy"}

	if s.deps.TradeRepo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.TradeRepo.HealthCheck(ctx); err != nil {
			resp["status"] = "unhealthy"
			resp["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "healthy"
	}

	if s.deps.PositionStore != nil {
		if s.deps.PositionStore.RedisAvailable() {
			resp["redis"] = "healthy"
		} else {
			resp["redis"] = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
