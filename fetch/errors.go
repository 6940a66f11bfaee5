package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError indicates a network failure, timeout, or non-success status
// while fetching a URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// kind classifies the failure for metrics and the run's errors-by-type map.
func (e *FetchError) kind() string {
	if e == nil {
		return "unknown"
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(e.Err, &opErr) {
		return "connection"
	}
	switch e.StatusCode {
	case 0:
		return "other"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "http_error"
	}
}

// Kind exposes the classification label.
func (e *FetchError) Kind() string {
	return e.kind()
}

// ParseError indicates a body that could not be parsed into a queryable
// form (malformed HTML, JSON, or XML).
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrorKind labels an arbitrary error for the errors-by-type map.
func ErrorKind(err error) string {
	if err == nil {
		return "unknown"
	}
	var ferr *FetchError
	if errors.As(err, &ferr) {
		return ferr.kind()
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		return "parse"
	}
	return "other"
}
