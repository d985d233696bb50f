package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"herowatch/internal/hero"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles administrative operations on the stored credential
type AdminHandler struct {
	store  hero.CredentialStore
	client *hero.Client
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store hero.CredentialStore, client *hero.Client, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		client: client,
		logger: logger,
	}
}

// UpdateRefreshToken replaces the stored refresh token manually. Useful when
// the token expired and re-running the login flow out of band.
// POST /v1/admin/credentials
func (h *AdminHandler) UpdateRefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
		AccountID    string `json:"account_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	// Get existing credentials (if any)
	creds, err := h.store.GetCredentials(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get existing credentials",
			"component", "api.admin",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve existing credentials",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	if creds == nil {
		creds = &hero.Credentials{
			CreatedAt: time.Now(),
		}
	}
	creds.RefreshToken = req.RefreshToken
	if req.AccountID != "" {
		creds.AccountID = req.AccountID
	}
	creds.UpdatedAt = time.Now()

	if err := h.store.SaveCredentials(c.Request.Context(), creds); err != nil {
		h.logger.Error("Failed to save refresh token",
			"component", "api.admin",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save refresh token",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	h.logger.Info("Refresh token updated successfully",
		"component", "api.admin",
	)

	// The running client keeps using the old token until restart; say so.
	c.JSON(http.StatusOK, gin.H{
		"message":    "Refresh token updated; restart the service to apply",
		"updated_at": creds.UpdatedAt,
	})
}

// GetCredentialStatus returns the state of the stored credential
// GET /v1/admin/credentials
func (h *AdminHandler) GetCredentialStatus(c *gin.Context) {
	creds, err := h.store.GetCredentials(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get credentials",
			"component", "api.admin",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve credential status",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	if creds == nil {
		c.JSON(http.StatusOK, gin.H{
			"configured": false,
			"message":    "No refresh token stored. Run hero-login or POST /v1/admin/credentials.",
		})
		return
	}

	accessTokenStatus := "valid"
	if h.client.Tokens().IsExpired() {
		accessTokenStatus = "expired_or_missing"
	}

	c.JSON(http.StatusOK, gin.H{
		"configured":               true,
		"account_id":               creds.AccountID,
		"refresh_token_updated_at": creds.UpdatedAt,
		"access_token_status":      accessTokenStatus,
	})
}
