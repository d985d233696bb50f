package hero

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means the credential itself was rejected. Recovery requires the
	// user to log in again; retrying with the same refresh token will not help.
	ErrAuth = errors.New("hero: authentication failed")

	// ErrConnection is a transport-level failure (refused, timeout, DNS, TLS).
	// Likely transient regardless of what the server would have said.
	ErrConnection = errors.New("hero: connection error")
)

// RemoteError is a non-200 response from a reachable server.
type RemoteError struct {
	Status int
	Path   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("hero: request failed: %s -> %d", e.Path, e.Status)
}

// IsAuthError reports whether err means re-authentication is required.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsConnectionError reports whether err is a transport failure.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsRemoteError reports whether err carries a non-200 remote status.
func IsRemoteError(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}
