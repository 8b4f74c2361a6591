// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the presence binaries.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X at build time and keep their development defaults in
// tests and local builds.
package version
