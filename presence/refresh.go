// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

// startRefresh (re)starts the expiration clock. A running clock is
// cancelled first.
func (e *Engine) startRefresh() {
	e.refresh.arm(e.config.RefreshInterval)
}

func (e *Engine) stopRefresh() {
	e.refresh.stop()
}

// refreshTick re-asserts the mapped status with a fresh expiration.
// The clock keeps running through manual mode and unmapped
// environments; those ticks do nothing.
func (e *Engine) refreshTick() {
	e.startRefresh()

	state := &e.state
	if state.mode == ModeManual {
		e.logger.Debug("refresh skipped: manual override active")
		return
	}
	if !state.connected {
		e.logger.Debug("refresh skipped: no connectivity")
		return
	}
	template, ok := e.config.Mapping.Lookup(state.environment)
	if !ok {
		e.logger.Debug("refresh skipped: environment not mapped", "environment", state.environment)
		return
	}

	now := e.clock.Now()
	request := template.Request(now.Add(e.config.Expiration), OriginAutomatic, true)
	e.dispatch(purposeRefresh, request, false)
}
