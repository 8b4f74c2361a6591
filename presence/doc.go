// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence keeps a remote presence status in step with the
// network the machine is attached to.
//
// An [Engine] owns all mutable state and runs it on one goroutine.
// Environment changes, timer firings, remote-call completions, and
// operator commands all arrive as events on a single ordered inbox, so
// no state is ever touched from two goroutines.
//
// Four pieces cooperate inside the engine:
//
//   - The debounce gate collapses a burst of environment changes into
//     one evaluation of the latest environment after a settle delay.
//   - The dispatcher runs at most one update chain at a time, retrying
//     transient failures with exponential backoff and dropping chains
//     that a newer intent has superseded.
//   - The expiration clock re-asserts the automatic status before its
//     server-side expiration lapses, and does nothing while a manual
//     status is pinned.
//   - The state machine switches between [ModeAutomatic] and
//     [ModeManual], and only on confirmed remote success.
//
// Timers come from [clock.Clock]. A timer callback never touches engine
// state: it posts a firing tagged with a generation, and the loop drops
// firings whose generation a later cancellation has retired. Stopping a
// timer therefore happens-before the next scheduling decision even if
// the callback was already running.
//
// The remote side is an [Updater]. Errors wrapping [ErrRejected] are
// permanent and never retried. Every other error is transient.
package presence
