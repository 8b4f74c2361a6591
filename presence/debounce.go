// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

// handleEnvironment records an observation and, in automatic mode,
// restarts the debounce delay. Only the latest observation is
// evaluated when the delay runs out.
func (e *Engine) handleEnvironment(event environmentChanged) {
	state := &e.state
	state.counters.EnvironmentEvents++
	state.environment = event.id
	state.connected = event.connected

	if state.mode == ModeManual {
		e.logger.Debug("environment changed during manual override", "environment", event.id, "connected", event.connected)
		return
	}

	e.logger.Debug("environment changed, debouncing", "environment", event.id, "connected", event.connected,
		"delay", e.config.DebounceDelay)
	e.debounce.arm(e.config.DebounceDelay)
}

func (e *Engine) debounceSettled() {
	if e.state.mode == ModeManual {
		return
	}
	e.evaluateEnvironment(false)
}
