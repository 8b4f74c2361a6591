// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the timer operations presence schedules:
// debounce delays, retry backoff, periodic status refresh, and the
// network watcher's poll ticker.
//
// Production code holds a Clock field initialized to Real(). Tests use
// Fake(), which never moves on its own:
//
//	fake := clock.Fake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))
//	engine := presence.New(config, presence.Options{Clock: fake})
//	// ... post an event that arms a timer ...
//	fake.WaitForTimers(1)
//	fake.Advance(3 * time.Second) // the debounce callback runs here
//
// AfterFunc callbacks on the fake clock run synchronously inside
// Advance, in deadline order. A callback must not call Advance.
package clock
