package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreNotFound indicates the storefront answered 404 for its product feed.
type ErrStoreNotFound struct {
	Domain string
}

func (e ErrStoreNotFound) Error() string {
	return fmt.Sprintf("store not found: %s", e.Domain)
}

// ErrRateLimited indicates the storefront kept answering 429 until the
// retry ceiling was reached.
type ErrRateLimited struct {
	Page     int
	Attempts int
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate_limited: page %d still throttled after %d attempts", e.Page, e.Attempts)
}

// ErrMalformedResponse indicates a page body without a products list.
type ErrMalformedResponse struct {
	Page int
	Err  error
}

func (e ErrMalformedResponse) Error() string {
	return fmt.Errorf("malformed response for page %d: %w", e.Page, e.Err).Error()
}

func (e ErrMalformedResponse) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates any other non-2xx answer.
type ErrHTTPStatus struct {
	Page       int
	StatusCode int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d fetching page %d", e.StatusCode, e.Page)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// errPaginationCeiling marks a 400 on a page past the first, which the
// platform uses to refuse deep pagination.
var errPaginationCeiling = errors.New("pagination ceiling reached")

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var notFound ErrStoreNotFound
	if errors.As(err, &notFound) {
		return "store_not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var malformed ErrMalformedResponse
	if errors.As(err, &malformed) {
		return "malformed_response"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_error"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	return "other"
}

// ErrorCode returns the short label used for metrics and error events.
func ErrorCode(err error) string {
	return errorTypeLabel(err)
}
