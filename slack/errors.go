// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMissingToken is returned when no bearer token is configured. It is
// permanent: retrying cannot conjure a token.
var ErrMissingToken = errors.New("slack: no API token configured")

// APIError is a structured Slack failure: a response whose JSON body
// says {"ok": false, "error": "..."}.
//
//	var apiErr *slack.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == slack.CodeInvalidAuth { ... }
type APIError struct {
	// Code is Slack's error string, e.g. "invalid_auth".
	Code string

	// Warning carries the response's "warning" field, if any.
	Warning string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: %s (%d)", e.Code, e.StatusCode)
}

// RetryAfter is the delay the server asked for via Retry-After, or 0.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// HTTPError is a non-2xx response without a Slack JSON body, typically
// from a proxy or load balancer in front of the API.
type HTTPError struct {
	StatusCode int

	// Snippet is the start of the body, whitespace collapsed.
	Snippet string

	retryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("slack: unexpected HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("slack: unexpected HTTP %d: %s", e.StatusCode, e.Snippet)
}

// RetryAfter is the delay the server asked for via Retry-After, or 0.
func (e *HTTPError) RetryAfter() time.Duration {
	return e.retryAfter
}

// Slack error codes the client distinguishes.
const (
	CodeRateLimited        = "ratelimited"
	CodeInternalError      = "internal_error"
	CodeFatalError         = "fatal_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeRequestTimeout     = "request_timeout"
	CodeInvalidAuth        = "invalid_auth"
	CodeNotAuthed          = "not_authed"
	CodeTokenRevoked       = "token_revoked"
	CodeMissingScope       = "missing_scope"
	CodeTooLong            = "too_long"
)

var transientCodes = map[string]bool{
	CodeRateLimited:        true,
	CodeInternalError:      true,
	CodeFatalError:         true,
	CodeServiceUnavailable: true,
	CodeRequestTimeout:     true,
}

// IsTransient reports whether err is worth retrying. Rate limits,
// server errors, Slack's transient codes, unstructured responses, and
// transport failures are transient. Any other structured error, and
// ErrMissingToken, is permanent. Context cancellation is not transient:
// the caller gave up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingToken) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return true
		}
		return transientCodes[apiErr.Code]
	}

	// Unstructured responses (*HTTPError) and everything the transport
	// produces: refused connections, timeouts, truncated bodies.
	return true
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
