package handlers

import (
	"log/slog"
	"net/http"

	"herowatch/internal/hero"
	"herowatch/internal/poller"

	"github.com/gin-gonic/gin"
)

// SnapshotHandler serves read-only views over the latest snapshot
type SnapshotHandler struct {
	coordinator *hero.Coordinator
	poller      *poller.Poller
	logger      *slog.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(coordinator *hero.Coordinator, p *poller.Poller, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		coordinator: coordinator,
		poller:      p,
		logger:      logger,
	}
}

// latest fetches the current snapshot or answers 503 when no cycle has
// succeeded yet.
func (h *SnapshotHandler) latest(c *gin.Context) *hero.Snapshot {
	snapshot := h.coordinator.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No data available yet",
			"code":  "NO_DATA",
		})
		return nil
	}
	return snapshot
}

// GetSnapshot returns the full normalized snapshot
// GET /v1/snapshot
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	if snapshot := h.latest(c); snapshot != nil {
		c.JSON(http.StatusOK, snapshot)
	}
}

// GetDoses returns the flattened dose list
// GET /v1/doses
func (h *SnapshotHandler) GetDoses(c *gin.Context) {
	if snapshot := h.latest(c); snapshot != nil {
		c.JSON(http.StatusOK, gin.H{
			"doses":      snapshot.Doses,
			"updated_at": snapshot.UpdatedAt,
		})
	}
}

// GetEvents returns the flattened event list
// GET /v1/events
func (h *SnapshotHandler) GetEvents(c *gin.Context) {
	if snapshot := h.latest(c); snapshot != nil {
		c.JSON(http.StatusOK, gin.H{
			"events":     snapshot.Events,
			"updated_at": snapshot.UpdatedAt,
		})
	}
}

// GetSlots returns the occupied slots with their remaining-supply estimates
// GET /v1/slots
func (h *SnapshotHandler) GetSlots(c *gin.Context) {
	if snapshot := h.latest(c); snapshot != nil {
		c.JSON(http.StatusOK, gin.H{
			"taken_slots":      snapshot.TakenSlots,
			"remaining_supply": snapshot.RemainingSupply,
			"updated_at":       snapshot.UpdatedAt,
		})
	}
}

// GetStatus returns the poller health and data freshness
// GET /v1/status
func (h *SnapshotHandler) GetStatus(c *gin.Context) {
	status := h.poller.Status()
	response := gin.H{
		"auth_required": status.AuthRequired,
		"has_data":      h.coordinator.Latest() != nil,
	}
	if status.LastError != "" {
		response["last_error"] = status.LastError
	}
	if !status.LastSuccess.IsZero() {
		response["last_success"] = status.LastSuccess
	}
	c.JSON(http.StatusOK, response)
}
