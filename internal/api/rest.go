// Package api provides the REST API handlers and server for Tickarr.
// It exposes the pure countdown calculations, timer sessions, the key-value
// store and real-time updates via WebSocket.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mescon/Tickarr/internal/auth"
	"github.com/mescon/Tickarr/internal/config"
	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/metrics"
	"github.com/mescon/Tickarr/internal/notifier"
	"github.com/mescon/Tickarr/internal/services"
	"github.com/mescon/Tickarr/internal/storage"
)

type RESTServer struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	repo       *db.Repository
	eventBus   *eventbus.EventBus
	timers     *services.TimerService
	store      *storage.Store
	scheduler  *services.SchedulerService
	metrics    *metrics.MetricsService
	notifier   *notifier.Notifier
	verifier   *auth.Verifier
	hub        *WebSocketHub
	limiter    *RateLimiter
	startTime  time.Time
}

// ServerDeps contains all dependencies required for the REST server
type ServerDeps struct {
	Config    *config.Config
	Repo      *db.Repository
	EventBus  *eventbus.EventBus
	Timers    *services.TimerService
	Store     *storage.Store
	Scheduler *services.SchedulerService
	Metrics   *metrics.MetricsService
	Notifier  *notifier.Notifier
	Verifier  *auth.Verifier
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Get()
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Request ID middleware for correlation/tracing
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      ErrMsgInternalError,
			"request_id": reqID,
		})
	}))

	r.Use(corsMiddleware(cfg.CORSOrigin))

	s := &RESTServer{
		router:    r,
		cfg:       cfg,
		repo:      deps.Repo,
		eventBus:  deps.EventBus,
		timers:    deps.Timers,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		notifier:  deps.Notifier,
		verifier:  deps.Verifier,
		hub:       NewWebSocketHub(deps.EventBus, cfg.CORSOrigin),
		limiter:   NewRateLimiter(120, time.Minute, 60),
		startTime: time.Now(),
	}

	s.setupRoutes()

	return s
}

// corsMiddleware allows the comma separated origins in allowed, or every
// origin for "*". With nothing configured the browser's same-origin policy
// applies.
func corsMiddleware(allowed string) gin.HandlerFunc {
	origins := parseOrigins(allowed)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowed == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && origins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func parseOrigins(list string) map[string]bool {
	origins := make(map[string]bool)
	if list == "" || list == "*" {
		return origins
	}
	for _, origin := range strings.Split(list, ",") {
		if o := strings.TrimSpace(origin); o != "" {
			origins[o] = true
		}
	}
	return origins
}

// Router exposes the gin engine, mainly for httptest.
func (s *RESTServer) Router() *gin.Engine {
	return s.router
}

func (s *RESTServer) setupRoutes() {
	basePath := s.cfg.BasePath

	// Prometheus scrapes at the root regardless of base path
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	var base *gin.RouterGroup
	if basePath == "" || basePath == "/" {
		base = s.router.Group("")
	} else {
		base = s.router.Group(basePath)
		s.router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, basePath)
		})
	}

	api := base.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/auth/status", s.handleAuthStatus)

		// Stateless calculations, rate limited per client IP
		pure := api.Group("")
		pure.Use(s.limiter.Middleware())
		{
			pure.GET("/time/format", s.handleFormatTime)
			pure.GET("/time/readable", s.handleReadableTime)
			pure.POST("/time/parse", s.handleParseTime)
			pure.POST("/duration/validate", s.handleValidateDuration)
			pure.GET("/progress", s.handleProgress)
			pure.POST("/warnings/thresholds", s.handleWarningThresholds)
			pure.POST("/warnings/zone", s.handleWarningZone)
			pure.POST("/warnings/triggered", s.handleWarningTriggered)
			pure.POST("/warnings/evaluate", s.handleEvaluateTick)
			pure.GET("/transitions", s.handleTransitionTable)
			pure.GET("/transitions/valid", s.handleValidTransition)
		}

		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			protected.POST("/auth/regenerate", s.regenerateAPIKey)

			protected.GET("/presets", s.getPresets)
			protected.GET("/timers", s.listTimers)
			protected.POST("/timers", s.createTimer)
			protected.GET("/timers/last-used", s.getLastUsed)
			protected.GET("/timers/:id", s.getTimer)
			protected.DELETE("/timers/:id", s.deleteTimer)
			protected.POST("/timers/:id/start", s.startTimer)
			protected.POST("/timers/:id/pause", s.pauseTimer)
			protected.POST("/timers/:id/resume", s.resumeTimer)
			protected.POST("/timers/:id/reset", s.resetTimer)
			protected.GET("/timers/:id/events", s.getTimerEvents)

			// Specific routes MUST come before :key parameter routes
			protected.GET("/storage", s.listStorage)
			protected.DELETE("/storage", s.clearStorage)
			protected.GET("/storage/export", s.exportStorage)
			protected.POST("/storage/import", s.importStorage)
			protected.GET("/storage/:key", s.getStorageValue)
			protected.PUT("/storage/:key", s.putStorageValue)
			protected.DELETE("/storage/:key", s.deleteStorageValue)

			protected.GET("/schedules", s.getSchedules)
			protected.POST("/schedules/:name/run", s.runSchedule)

			protected.GET("/ws", func(c *gin.Context) {
				s.hub.HandleConnection(c)
			})

			protected.GET("/logs/recent", s.handleRecentLogs)
			protected.GET("/logs/download", s.handleDownloadLogs)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and releases the hub and
// rate limiter goroutines.
func (s *RESTServer) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	s.limiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *RESTServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-API-Key")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		// Query parameters cover WebSocket clients that cannot set headers
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			token = c.Query("apikey")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
			return
		}

		if s.verifier == nil || !s.verifier.Verify(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Next()
	}
}
