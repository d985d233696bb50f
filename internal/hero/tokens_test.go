package hero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(tokenURL, refreshToken string) (*TokenManager, *MockClock) {
	clock := &MockClock{CurrentTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	manager := NewTokenManager(nil, tokenURL, "test-client", refreshToken, nil)
	manager.clock = clock
	return manager, clock
}

func TestTokenManager_IsExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "access-1"})
	}))
	defer server.Close()

	manager, clock := newTestTokenManager(server.URL, "refresh-1")

	// No access token held yet
	assert.True(t, manager.IsExpired())

	require.NoError(t, manager.Refresh(context.Background()))
	assert.False(t, manager.IsExpired())

	// Still inside the usable window
	clock.Advance(tokenLifetime - tokenExpiryBuffer - time.Minute)
	assert.False(t, manager.IsExpired())

	// Past the buffer boundary
	clock.Advance(2 * time.Minute)
	assert.True(t, manager.IsExpired())
}

func TestTokenManager_Refresh_SendsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))

		json.NewEncoder(w).Encode(map[string]string{"access_token": "access-1"})
	}))
	defer server.Close()

	manager, _ := newTestTokenManager(server.URL, "refresh-1")
	require.NoError(t, manager.Refresh(context.Background()))
	assert.Equal(t, "access-1", manager.AccessToken())
}

func TestTokenManager_Refresh_Rotation(t *testing.T) {
	rotate := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"access_token": "access-1"}
		if rotate {
			resp["refresh_token"] = "refresh-2"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	manager, _ := newTestTokenManager(server.URL, "refresh-1")

	// Server rotates the refresh token
	require.NoError(t, manager.Refresh(context.Background()))
	assert.Equal(t, "refresh-2", manager.RefreshToken())

	// Server does not rotate: the old one is kept
	rotate = false
	require.NoError(t, manager.Refresh(context.Background()))
	assert.Equal(t, "refresh-2", manager.RefreshToken())
}

func TestTokenManager_Refresh_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		manager, _ := newTestTokenManager(server.URL, "refresh-1")
		err := manager.Refresh(context.Background())
		assert.True(t, IsAuthError(err), "status %d should be an auth failure", status)
		server.Close()
	}
}

func TestTokenManager_Refresh_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer"})
	}))
	defer server.Close()

	manager, _ := newTestTokenManager(server.URL, "refresh-1")
	err := manager.Refresh(context.Background())
	assert.True(t, IsAuthError(err), "malformed success should be treated as an auth fault")
}

func TestTokenManager_Refresh_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	manager, _ := newTestTokenManager(server.URL, "refresh-1")
	err := manager.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, IsAuthError(err), "a 500 is transient, not an auth failure")
	assert.True(t, IsRemoteError(err))
}

func TestTokenManager_Refresh_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	manager, _ := newTestTokenManager(server.URL, "refresh-1")
	err := manager.Refresh(context.Background())
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsAuthError(err))
}
