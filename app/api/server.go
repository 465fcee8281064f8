package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alg-bug-engineer/Neural-Flow/app/obs"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, archiveDir string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, X-Trace-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Trace middleware: honor an inbound trace id, mint one otherwise, and
	// echo it back so callers can correlate with /logs.
	r.Use(func(c *gin.Context) {
		traceID := obs.NormalizeID(c.GetHeader(obs.TraceHeader))
		if traceID == "" {
			traceID = obs.NewTraceID()
		}
		c.Request = c.Request.WithContext(obs.WithTraceID(c.Request.Context(), traceID))
		c.Header(obs.TraceHeader, traceID)
		c.Next()
	})

	// Routes
	setupRoutes(r, handler, apiAccessKey, archiveDir)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, archiveDir string) {
	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/status", handler.GetStatus)

	// Read-only inspection endpoints
	r.GET("/dashboard", handler.GetDashboard)
	r.GET("/logs", handler.GetLogs)

	// Archived markdown documents (gin confines the path to the root)
	if archiveDir != "" {
		r.Static("/local-archive", archiveDir)
	}

	// Confirmation callback: external automation tools authenticate via the
	// url_verification handshake, so this stays outside the API key group.
	r.POST("/callback", handler.PostCallback)

	// Control endpoints (authentication required when API_ACCESS_KEY is set)
	control := r.Group("/")
	if apiAccessKey != "" {
		control.Use(authMiddleware(apiAccessKey))
		log.Printf("Control endpoints enabled with authentication")
	} else {
		log.Printf("Control endpoints enabled without authentication (API_ACCESS_KEY not set)")
	}
	{
		control.POST("/run_once", handler.PostRunOnce)
		control.POST("/reload", handler.PostReload)
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":    "/health",
			"status":    "/status",
			"dashboard": "/dashboard?record_type=<topic|draft>&trace_id=<id>&limit=<n>",
			"logs":      "/logs?trace_id=<id>&component=<name>&level=<level>&keyword=<text>&limit=<n>",
			"archive":   "/local-archive/<date>/<bucket>/<file>.md",
			"callback":  "/callback (POST, ?force=true to regenerate)",
			"run_once":  "/run_once (POST, ?source_id=<id>)",
			"reload":    "/reload (POST)",
		}

		c.JSON(200, gin.H{
			"service":     "Neural-Flow",
			"description": "Content discovery and publication pipeline: scheduled source scans, fingerprint deduplication, confirmation-driven draft expansion",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for control endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get API key from X-API-Key header
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// Check if API key is provided and matches
		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		// Continue to next middleware/handler
		c.Next()
	}
}
