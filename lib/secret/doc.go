// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps the Slack bearer token out of the Go heap.
//
// [Buffer] memory comes from an anonymous mmap. It is mlocked so it
// never reaches swap and marked MADV_DONTDUMP so it stays out of core
// dumps. Close zeroes, unlocks, and unmaps it. Reads after Close panic.
//
// Tokens enter through [NewFromBytes] (which zeroes the caller's copy)
// or [ReadFromPath] (a token file, or stdin when the path is "-").
package secret
