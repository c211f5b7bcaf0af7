package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError reports a transport failure: the request never produced a response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote: %s %s: network error: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError reports a non-2xx response.
type RemoteError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// Temporary reports whether the failure is on the server side and worth retrying.
func (e *RemoteError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// IsNetworkError reports whether err carries a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRetryable reports whether a write that failed with err should be kept for replay:
// transport failures and temporary server errors are, client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) {
		return true
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Temporary()
	}
	return false
}
