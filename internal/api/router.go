package api

import (
	"log/slog"
	"strings"

	"herowatch/internal/api/handlers"
	"herowatch/internal/api/middleware"
	"herowatch/internal/hero"
	"herowatch/internal/poller"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Coordinator *hero.Coordinator
	Client      *hero.Client
	Poller      *poller.Poller
	Store       hero.CredentialStore
	APIKey      string
	Logger      *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		// Snapshot read endpoints
		snapshotHandler := handlers.NewSnapshotHandler(
			config.Coordinator,
			config.Poller,
			config.Logger,
		)
		v1.GET("/snapshot", snapshotHandler.GetSnapshot)
		v1.GET("/doses", snapshotHandler.GetDoses)
		v1.GET("/events", snapshotHandler.GetEvents)
		v1.GET("/slots", snapshotHandler.GetSlots)
		v1.GET("/status", snapshotHandler.GetStatus)

		// Device endpoints (latest snapshot + on-demand reads)
		deviceHandler := handlers.NewDeviceHandler(
			config.Coordinator,
			config.Client,
			config.Logger,
		)
		v1.GET("/device", deviceHandler.GetDevice)
		v1.GET("/device/safety", deviceHandler.GetSafetySettings)
		v1.GET("/device/vacation", deviceHandler.GetVacationConfig)
		v1.GET("/device/activity", deviceHandler.GetActivityLog)

		// Admin endpoints
		adminHandler := handlers.NewAdminHandler(
			config.Store,
			config.Client,
			config.Logger,
		)
		v1.GET("/admin/credentials", adminHandler.GetCredentialStatus)
		v1.POST("/admin/credentials", adminHandler.UpdateRefreshToken)
	}

	return router
}

// authMiddleware verifies API key authentication. The configured key may be
// either a plain value or a bcrypt hash (recognized by the $2 prefix).
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-HeroWatch-Key")

		authorized := false
		if strings.HasPrefix(apiKey, "$2") {
			authorized = bcrypt.CompareHashAndPassword([]byte(apiKey), []byte(providedKey)) == nil
		} else {
			authorized = providedKey == apiKey
		}

		if !authorized {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
