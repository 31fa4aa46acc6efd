package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTooLarge means the response declared or streamed more bytes
	// than the configured ceiling. The body is never buffered past it.
	ErrTooLarge = errors.New("response exceeds size ceiling")
	// ErrEmptyBody means the server returned zero bytes without
	// declaring a zero Content-Length.
	ErrEmptyBody = errors.New("response body is empty")
)

// StatusError is returned for HTTP error statuses (4xx/5xx).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}
