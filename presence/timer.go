// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
)

// timerRole names the engine's timer slots.
type timerRole int

const (
	roleDebounce timerRole = iota
	roleRefresh
	roleRetry
)

func (r timerRole) String() string {
	switch r {
	case roleDebounce:
		return "debounce"
	case roleRefresh:
		return "refresh"
	case roleRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// timerFired is posted by a timer callback. The loop accepts it only if
// the slot's generation still matches.
type timerFired struct {
	role       timerRole
	generation uint64
}

// timerSlot holds at most one live timer for a role. arm always stops
// the previous timer first, and both arm and stop retire the previous
// generation, so a callback that was already on its way in is dropped
// by accept.
//
// A timerSlot is owned by the engine loop and is not safe for
// concurrent use.
type timerSlot struct {
	role       timerRole
	clock      clock.Clock
	post       func(any)
	timer      *clock.Timer
	generation uint64
}

func newTimerSlot(role timerRole, timeSource clock.Clock, post func(any)) *timerSlot {
	return &timerSlot{role: role, clock: timeSource, post: post}
}

func (s *timerSlot) arm(delay time.Duration) {
	s.stop()
	generation := s.generation
	role := s.role
	post := s.post
	s.timer = s.clock.AfterFunc(delay, func() {
		post(timerFired{role: role, generation: generation})
	})
}

// stop cancels the live timer, if any. Safe to call repeatedly.
func (s *timerSlot) stop() {
	s.timer.Stop()
	s.timer = nil
	s.generation++
}

// active reports whether a timer is armed and has not been accepted.
func (s *timerSlot) active() bool {
	return s.timer != nil
}

// accept reports whether firing belongs to the live timer and, if so,
// marks the slot idle.
func (s *timerSlot) accept(firing timerFired) bool {
	if s.timer == nil || firing.generation != s.generation {
		return false
	}
	s.timer = nil
	s.generation++
	return true
}
