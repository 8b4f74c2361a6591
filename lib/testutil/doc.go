// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across presence packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that wait on engine outcomes, fake remote calls, or
// server readiness fail with a message instead of hanging. They are the
// only place tests use wall-clock timeouts; everything else runs on
// lib/clock's fake clock.
package testutil
