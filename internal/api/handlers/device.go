package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"herowatch/internal/hero"

	"github.com/gin-gonic/gin"
)

// DeviceHandler serves dispenser state: connectivity and configuration from
// the latest snapshot, plus a few on-demand reads proxied to the cloud.
type DeviceHandler struct {
	coordinator *hero.Coordinator
	client      *hero.Client
	logger      *slog.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(coordinator *hero.Coordinator, client *hero.Client, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{
		coordinator: coordinator,
		client:      client,
		logger:      logger,
	}
}

// GetDevice returns connectivity and configuration from the latest snapshot
// GET /v1/device
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	snapshot := h.coordinator.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No data available yet",
			"code":  "NO_DATA",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"online":     snapshot.DeviceOnline,
		"config":     snapshot.DeviceConfig,
		"updated_at": snapshot.UpdatedAt,
	})
}

// GetSafetySettings proxies the safety settings read
// GET /v1/device/safety
func (h *DeviceHandler) GetSafetySettings(c *gin.Context) {
	h.proxy(c, "safety settings", h.client.SafetySettings)
}

// GetVacationConfig proxies the vacation mode configuration read
// GET /v1/device/vacation
func (h *DeviceHandler) GetVacationConfig(c *gin.Context) {
	h.proxy(c, "vacation config", h.client.VacationConfig)
}

// GetActivityLog proxies the device activity log read
// GET /v1/device/activity
func (h *DeviceHandler) GetActivityLog(c *gin.Context) {
	h.proxy(c, "activity log", h.client.ActivityLog)
}

func (h *DeviceHandler) proxy(c *gin.Context, name string, fetch func(ctx context.Context) (any, error)) {
	payload, err := fetch(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch "+name,
			"component", "api.device",
			"error", err,
		)
		status := http.StatusBadGateway
		if hero.IsAuthError(err) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{
			"error": "Failed to fetch " + name,
			"code":  "UPSTREAM_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": payload})
}
