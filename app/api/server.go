package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

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

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/users/:userId/configs", handler.RegisterConfig)
			api.GET("/users/:userId/configs", handler.ListConfigs)
			api.PATCH("/users/:userId/configs/:configId", handler.UpdateConfig)
			api.POST("/users/:userId/configs/:configId/activate", handler.ActivateConfig)
			api.POST("/users/:userId/configs/:configId/deactivate", handler.DeactivateConfig)

			api.POST("/users/:userId/evaluations/run", handler.RunEvaluations)
			api.POST("/evaluations/run-all", handler.RunAllEvaluations)

			api.GET("/users/:userId/histories", handler.ListHistories)
			api.POST("/users/:userId/histories/:historyId/read", handler.MarkHistoryRead)
		}
		log.Printf("API endpoints enabled with authentication")
	} else {
		log.Printf("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"stats":  "/stats",
		}

		if apiAccessKey != "" {
			endpoints["configs"] = "/api/users/<userId>/configs (requires X-API-Key header)"
			endpoints["run"] = "/api/users/<userId>/evaluations/run (POST, requires X-API-Key header)"
			endpoints["run_all"] = "/api/evaluations/run-all (POST, requires X-API-Key header)"
			endpoints["histories"] = "/api/users/<userId>/histories (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "RankWatch",
			"description": "Periodic search-performance evaluation for tracked content items",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
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

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")

		if key == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				key = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if key != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}

		c.Next()
	}
}
