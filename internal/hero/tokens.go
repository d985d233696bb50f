package hero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// Assumed access-token lifetime. Hero issues roughly 60-minute tokens;
	// 50 minutes is the conservative figure the mobile client works with.
	tokenLifetime = 3000 * time.Second

	// Refresh this far before the assumed expiry to absorb clock skew and
	// in-flight request latency.
	tokenExpiryBuffer = 120 * time.Second
)

// Credentials is the persisted credential record. The refresh token is the
// only value that needs durable storage; the access token is always
// re-derivable from it.
type Credentials struct {
	RefreshToken string
	AccountID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialStore defines the interface for credential persistence
// This interface is implemented by the storage layer to avoid tight coupling
type CredentialStore interface {
	GetCredentials(ctx context.Context) (*Credentials, error)
	SaveCredentials(ctx context.Context, creds *Credentials) error
}

// TokenManager holds the credential pair for one Hero account and exchanges
// the refresh token for new access tokens at the OAuth2 token endpoint.
type TokenManager struct {
	httpClient *http.Client
	tokenURL   string
	clientID   string
	logger     *slog.Logger
	clock      Clock

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	acquiredAt   time.Time
}

// NewTokenManager creates a token manager seeded with a refresh token.
func NewTokenManager(httpClient *http.Client, tokenURL, clientID, refreshToken string, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenManager{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		refreshToken: refreshToken,
		logger:       logger,
		clock:        RealClock{},
	}
}

// AccessToken returns the current access token, empty before the first refresh.
func (m *TokenManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// RefreshToken returns the current refresh token (may rotate after a refresh).
func (m *TokenManager) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshToken
}

// IsExpired reports whether the access token is missing or inside the
// pre-expiry buffer window.
func (m *TokenManager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isExpiredLocked()
}

func (m *TokenManager) isExpiredLocked() bool {
	if m.accessToken == "" || m.acquiredAt.IsZero() {
		return true
	}
	return m.clock.Now().Sub(m.acquiredAt) >= tokenLifetime-tokenExpiryBuffer
}

// EnsureValid refreshes the access token only if it is missing or near expiry.
func (m *TokenManager) EnsureValid(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isExpiredLocked() {
		return nil
	}
	return m.refreshLocked(ctx)
}

// Refresh unconditionally exchanges the refresh token for a new access token.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *TokenManager) refreshLocked(ctx context.Context) error {
	m.logger.Debug("refreshing access token")

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.clientID},
		"refresh_token": {m.refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Debug("token refresh rejected",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return fmt.Errorf("%w: refresh token rejected (status %d)", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Status: resp.StatusCode, Path: m.tokenURL}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}

	// A 200 without an access token means the account is in a state the
	// refresh token cannot recover from. Treat it like an auth fault.
	if payload.AccessToken == "" {
		return fmt.Errorf("%w: no access token in refresh response", ErrAuth)
	}

	m.accessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		m.refreshToken = payload.RefreshToken
	}
	m.acquiredAt = m.clock.Now()

	m.logger.Debug("access token refreshed")
	return nil
}
