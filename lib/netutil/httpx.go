// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads for the JSON APIs presence
// talks to. Slack responses are a few kilobytes; the limit only guards
// against a broken proxy or captive portal streaming an unbounded body.
package netutil

import (
	"io"
	"strings"
)

// MaxResponseSize caps JSON API response reads at 4 MB.
const MaxResponseSize int64 = 4 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. Use
// instead of io.ReadAll for HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// Snippet shortens a response body for an error message: whitespace
// is collapsed and the result is cut at limit runes.
func Snippet(body []byte, limit int) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
