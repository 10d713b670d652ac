package search

import (
	"fmt"
	"time"
)

// ThrottledError is returned by a Backend when the service signals too many
// requests. RetryAfter is zero if the service gave no hint.
type ThrottledError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("search: throttled, retry after %s", e.RetryAfter)
}

func (e *ThrottledError) Unwrap() error { return e.Err }

// RequestError is a failed search the caller records and moves past.
type RequestError struct {
	Query string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("search: request failed for %q: %v", e.Query, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
