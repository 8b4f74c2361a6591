// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
)

func TestTimerSlotArmCancelsPrevious(t *testing.T) {
	fake := clock.Fake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	var posted []any
	slot := newTimerSlot(roleRefresh, fake, func(event any) { posted = append(posted, event) })

	slot.arm(10 * time.Minute)
	slot.arm(10 * time.Minute)
	if fake.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d after arming twice, want 1", fake.PendingCount())
	}

	fake.Advance(10 * time.Minute)
	if len(posted) != 1 {
		t.Fatalf("posted %d firings, want 1", len(posted))
	}
	if !slot.accept(posted[0].(timerFired)) {
		t.Fatal("live firing rejected")
	}
	if slot.active() {
		t.Error("slot still active after accepting its firing")
	}
}

func TestTimerSlotRejectsStaleFiring(t *testing.T) {
	fake := clock.Fake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	var posted []timerFired
	slot := newTimerSlot(roleDebounce, fake, func(event any) { posted = append(posted, event.(timerFired)) })

	slot.arm(3 * time.Second)
	fake.Advance(3 * time.Second)
	if len(posted) != 1 {
		t.Fatalf("posted %d firings, want 1", len(posted))
	}

	// The callback already ran, but a newer arm supersedes it before the
	// loop gets to the firing.
	slot.arm(3 * time.Second)
	if slot.accept(posted[0]) {
		t.Fatal("stale firing accepted after re-arm")
	}

	slot.stop()
	slot.stop()
	fake.Advance(time.Minute)
	if len(posted) != 1 {
		t.Fatalf("stopped timer posted a firing")
	}
	if slot.active() {
		t.Error("slot active after stop")
	}
}
