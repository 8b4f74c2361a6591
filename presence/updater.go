// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRejected marks a permanent remote failure: a bad or missing
// credential, a malformed request, anything a retry cannot fix. An
// Updater wraps its error with ErrRejected to stop the retry chain.
var ErrRejected = errors.New("status update rejected")

// Updater sends one status to the remote. It must honor ctx
// cancellation: the engine cancels the context of a superseded chain.
type Updater interface {
	UpdateStatus(ctx context.Context, request StatusRequest) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context, request StatusRequest) error

// UpdateStatus calls f.
func (f UpdaterFunc) UpdateStatus(ctx context.Context, request StatusRequest) error {
	return f(ctx, request)
}

// Notifier delivers a user-visible message. Notify is called from the
// engine loop and must return promptly. Delivery failures are the
// notifier's own business.
type Notifier interface {
	Notify(title, body string)
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, string) {}

// retryAfterHint is implemented by errors that know how long the
// remote asked us to wait, such as an HTTP 429 with Retry-After.
type retryAfterHint interface {
	RetryAfter() time.Duration
}

// Result classifies one attempt.
type Result int

const (
	ResultSuccess Result = iota
	ResultRejected
	ResultTransient
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRejected:
		return "rejected"
	case ResultTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// MarshalText encodes the result by name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name.
func (r *Result) UnmarshalText(text []byte) error {
	for _, candidate := range []Result{ResultSuccess, ResultRejected, ResultTransient} {
		if candidate.String() == string(text) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", text)
}

// Classify maps an Updater error to a Result.
func Classify(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrRejected):
		return ResultRejected
	default:
		return ResultTransient
	}
}
