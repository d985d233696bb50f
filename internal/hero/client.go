package hero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Identifying headers the Hero cloud expects on every request
const heroClientHeader = "HeroWeb;desktop-Chrome;4.0.0"

// ClientConfig contains Hero cloud API configuration
type ClientConfig struct {
	BaseURL   string // cloud API base URL
	TokenURL  string // OAuth2 token endpoint on the identity host
	ClientID  string // public OAuth2 client ID of the mobile app
	AccountID string // optional account scope sent as X-Hero-Account
}

// Client is an authenticated HTTP client for the Hero cloud API. Each endpoint
// method is a thin wrapper over the shared request primitive, which handles
// proactive token refresh and a single retry on an unexpected 401.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	tokens     *TokenManager
	logger     *slog.Logger
}

// NewClient creates a new Hero API client seeded with a refresh token.
func NewClient(config ClientConfig, refreshToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    config.BaseURL,
		accountID:  config.AccountID,
		tokens:     NewTokenManager(httpClient, config.TokenURL, config.ClientID, refreshToken, logger),
		logger:     logger,
	}
}

// Tokens exposes the token manager (for expiry status reporting).
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// RefreshToken returns the current refresh token (may rotate after a refresh).
func (c *Client) RefreshToken() string {
	return c.tokens.RefreshToken()
}

// request issues one authenticated call. The bearer token is validated before
// the request; a 401 despite a believed-valid token forces one refresh and one
// retry. A second 401 is an auth failure, never another retry.
func (c *Client) request(ctx context.Context, method, path string) (any, error) {
	if err := c.tokens.EnsureValid(ctx); err != nil {
		return nil, err
	}

	payload, status, err := c.do(ctx, method, path)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Debug("got 401, refreshing token and retrying", "path", path)
		if err := c.tokens.Refresh(ctx); err != nil {
			return nil, err
		}
		payload, status, err = c.do(ctx, method, path)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: request rejected after token refresh", ErrAuth)
		}
	}

	if status != http.StatusOK {
		return nil, &RemoteError{Status: status, Path: path}
	}
	return payload, nil
}

// do performs a single HTTP exchange and decodes a 200 body as untyped JSON.
// Shape validation is deliberately left to the snapshot builder.
func (c *Client) do(ctx context.Context, method, path string) (any, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Hero-Client", heroClientHeader)
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	if c.accountID != "" {
		req.Header.Set("X-Hero-Account", c.accountID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading body: %v", ErrConnection, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, resp.StatusCode, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, fmt.Errorf("hero: invalid response body for %s: %w", path, err)
	}
	return payload, resp.StatusCode, nil
}

// ---- One method per remote endpoint ----

// UserDetails fetches details of the logged-in user.
func (c *Client) UserDetails(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/user-details/")
}

// HomeScreenDoses fetches the current doses shown on the home screen.
func (c *Client) HomeScreenDoses(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/home-screen-doses/")
}

// HomeScreenEvents fetches recent dispenser events.
func (c *Client) HomeScreenEvents(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/get-home-screen-events/")
}

// PillsBySchedules fetches pills organized by schedule.
func (c *Client) PillsBySchedules(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/pills-by-schedules/")
}

// PillStats fetches per-pill statistics.
func (c *Client) PillStats(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/pill-stats/")
}

// Stats fetches overall adherence statistics.
func (c *Client) Stats(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/stats/")
}

// CheckDeviceOffline asks the cloud whether the dispenser is offline.
func (c *Client) CheckDeviceOffline(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodPost, "/frontend/check-hero-offline/")
}

// DeviceConfig fetches the dispenser configuration, including the pill list.
func (c *Client) DeviceConfig(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/device-config-get/")
}

// TakenSlots fetches which medication slots are occupied.
func (c *Client) TakenSlots(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/get-taken-slots/")
}

// PillRemainingDays fetches the remaining-supply estimate for one slot.
func (c *Client) PillRemainingDays(ctx context.Context, slotIndex int) (any, error) {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("/frontend/pill-remaining-days/?slot_index=%d", slotIndex))
}

// OwnerDetails fetches details of the dispenser owner.
func (c *Client) OwnerDetails(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/owner-details/")
}

// ActivityLog fetches the device activity log.
func (c *Client) ActivityLog(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/activity-log-device/")
}

// CurrentConfig fetches the current medication configuration.
func (c *Client) CurrentConfig(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/user-config-current")
}

// SafetySettings fetches the safety settings.
func (c *Client) SafetySettings(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/safety-settings-read/")
}

// VacationConfig fetches the vacation mode configuration.
func (c *Client) VacationConfig(ctx context.Context) (any, error) {
	return c.request(ctx, http.MethodGet, "/frontend/vacation-get-config/")
}
