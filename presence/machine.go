// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import "time"

// evaluateEnvironment dispatches whatever the current environment calls
// for. operator is set when an explicit command asked for it.
func (e *Engine) evaluateEnvironment(operator bool) Receipt {
	state := &e.state
	now := e.clock.Now()

	if template, ok := e.config.Mapping.Lookup(state.environment); ok && state.connected {
		request := template.Request(now.Add(e.config.Expiration), OriginAutomatic, false)
		return e.dispatch(purposeEnvironment, request, operator)
	}

	if e.config.PreserveOnUnknown {
		e.logger.Info("environment not mapped, preserving status",
			"environment", state.environment, "connected", state.connected)
		return Receipt{Reason: "environment not mapped; status preserved"}
	}

	// The default status has no refresh, so it carries no expiration.
	request := e.config.DefaultStatus.Request(time.Time{}, OriginAutomatic, false)
	return e.dispatch(purposeDefault, request, operator)
}

func (e *Engine) handleCommand(command commandRequest) Receipt {
	state := &e.state
	now := e.clock.Now()

	switch command.kind {
	case commandSetManual:
		request := command.template.Request(command.expiration.Resolve(now), OriginManual, false)
		return e.dispatch(purposeManual, request, true)

	case commandClear:
		return e.dispatch(purposeClear, StatusRequest{Origin: OriginManual}, true)

	case commandResume:
		if state.mode == ModeManual {
			e.logger.Info("resuming automatic mode")
		}
		state.mode = ModeAutomatic
		e.debounce.stop()
		return e.evaluateEnvironment(true)
	}
	return Receipt{Reason: "unknown command"}
}

// chainSucceeded applies a confirmed update.
func (e *Engine) chainSucceeded(done *chain) {
	state := &e.state
	request := done.request
	state.counters.Successes++
	state.lastFailure = nil
	state.confirmed = &ConfirmedStatus{
		Text:        request.Text,
		Glyph:       request.Glyph,
		ExpiresAt:   request.ExpiresAt,
		Origin:      request.Origin,
		ConfirmedAt: e.clock.Now(),
	}

	switch done.purpose {
	case purposeEnvironment:
		e.startRefresh()
	case purposeRefresh:
		// The tick already re-armed the clock.
	case purposeDefault:
		e.stopRefresh()
	case purposeManual:
		if state.mode != ModeManual {
			e.logger.Info("entering manual mode")
		}
		state.mode = ModeManual
		e.debounce.stop()
	case purposeClear:
		if state.mode != ModeAutomatic {
			e.logger.Info("status cleared, returning to automatic mode")
		}
		state.mode = ModeAutomatic
		e.stopRefresh()
	}

	e.logger.Info("status updated", "chain", done.id, "purpose", done.purpose,
		"attempts", done.attempt, "status", request.String(), "mode", state.mode)
	if !request.Silent {
		e.notifier.Notify("Status updated", request.String())
	}
}

// chainFailed records a terminal failure. Mode never changes here.
func (e *Engine) chainFailed(done *chain, outcome Outcome) {
	state := &e.state
	state.counters.TerminalFailures++
	state.lastFailure = &Failure{
		ChainID: done.id,
		Request: done.request,
		Result:  outcome.Result,
		Error:   errorText(outcome.Err),
		At:      e.clock.Now(),
	}

	reason := "retries exhausted"
	if outcome.Result == ResultRejected {
		reason = "rejected"
	}
	e.logger.Error("status update failed", "chain", done.id, "purpose", done.purpose,
		"attempts", done.attempt, "reason", reason, "status", done.request.String(), "error", outcome.Err)
	e.notifier.Notify("Status update failed", done.request.String()+": "+errorText(outcome.Err))
}

// afterChain runs an evaluation that was deferred while an operator
// chain was in flight.
func (e *Engine) afterChain(done *chain) {
	state := &e.state
	if !state.reevaluate || state.active != nil {
		return
	}
	state.reevaluate = false
	if state.mode != ModeAutomatic || done.purpose == purposeClear {
		return
	}
	e.logger.Debug("evaluating deferred environment change")
	e.evaluateEnvironment(false)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
