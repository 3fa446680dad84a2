package fetcher

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/scipunch/subfeed/fetcher/types"
)

// FeedFetcher is re-exported so callers don't need the types package
type FeedFetcher = types.FeedFetcher

// TransientFetchError is returned when the feed could not be retrieved:
// connection failures, timeouts and non-2xx responses.
type TransientFetchError struct {
	SourceID   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch of source %s failed with status %d", e.SourceID, e.StatusCode)
	}
	return fmt.Sprintf("fetch of source %s failed with %v", e.SourceID, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed
func (e *TransientFetchError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether err carries a TransientFetchError
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// ParseError describes a feed document that could not be understood.
// It is never returned from Fetch, only reported to the parse failure hook.
type ParseError struct {
	SourceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed of source %s: %v", e.SourceID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errDTD = errors.New("document declares a DTD")
