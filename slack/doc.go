// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package slack sets a user's Slack profile status through the Web API
// method users.profile.set.
//
// [Client] is a small JSON-over-HTTP client with bearer authentication
// and a client-side rate limiter. Structured failures come back as
// [*APIError], which callers extract with errors.As. [IsTransient]
// separates failures worth retrying (rate limits, server faults,
// transport errors, unstructured responses) from permanent ones (bad
// token, bad arguments).
//
// [Updater] plugs the client into the presence engine: permanent
// failures are wrapped with presence.ErrRejected so the engine does not
// retry them.
package slack
