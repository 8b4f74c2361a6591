// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// purpose is why a chain was dispatched. It decides what the state
// machine does when the chain succeeds.
type purpose int

const (
	purposeEnvironment purpose = iota
	purposeRefresh
	purposeDefault
	purposeManual
	purposeClear
)

func (p purpose) String() string {
	switch p {
	case purposeEnvironment:
		return "environment"
	case purposeRefresh:
		return "refresh"
	case purposeDefault:
		return "default"
	case purposeManual:
		return "manual"
	case purposeClear:
		return "clear"
	default:
		return "unknown"
	}
}

// chain is one request and its retries. The engine holds at most one.
type chain struct {
	id      string
	purpose purpose
	request StatusRequest

	// operator chains pin a manual or clear request. Automatic
	// evaluations never supersede them.
	operator bool

	// attempt counts attempts started, from 1.
	attempt  int
	schedule *backoff.ExponentialBackOff

	context context.Context
	cancel  context.CancelFunc
}

// attemptDone is posted by the updater goroutine.
type attemptDone struct {
	chainID string
	attempt int
	err     error
}

func (e *Engine) newSchedule() *backoff.ExponentialBackOff {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = e.config.BaseDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxInterval = e.config.MaxDelay
	schedule.Reset()
	return schedule
}

// dispatch starts a chain for request, cancelling any chain in flight.
// operator is set when an explicit command asked for the dispatch; such
// a dispatch supersedes anything. An automatic evaluation does not
// cancel an operator chain: it is skipped, and the environment is
// evaluated again when the operator chain ends. Only manual and clear
// chains count as operator chains once started, so an environment
// chain started by a resume is replaced by the next network change.
func (e *Engine) dispatch(why purpose, request StatusRequest, operator bool) Receipt {
	state := &e.state
	if active := state.active; active != nil {
		if active.operator && !operator {
			state.counters.Skipped++
			state.reevaluate = true
			e.logger.Info("operator update in flight, deferring automatic update",
				"purpose", why, "in_flight", active.id)
			return Receipt{Reason: "operator update in flight"}
		}
		e.logger.Info("superseding status update",
			"chain", active.id, "purpose", active.purpose, "attempt", active.attempt, "by", why)
		active.cancel()
		e.retry.stop()
		state.counters.Superseded++
		state.active = nil
	}

	chainContext, cancel := context.WithCancel(e.runContext)
	next := &chain{
		id:       e.newChainID(),
		purpose:  why,
		request:  request,
		operator: why == purposeManual || why == purposeClear,
		schedule: e.newSchedule(),
		context:  chainContext,
		cancel:   cancel,
	}
	state.active = next
	state.counters.DispatchesStarted++

	if state.confirmed != nil && request.Fingerprint() == fingerprintOf(state.confirmed) {
		e.logger.Debug("dispatching unchanged status", "chain", next.id, "purpose", why, "status", request.String())
	} else {
		e.logger.Info("dispatching status update", "chain", next.id, "purpose", why, "status", request.String())
	}

	e.startAttempt(next)
	return Receipt{ChainID: next.id, Dispatched: true}
}

func fingerprintOf(confirmed *ConfirmedStatus) string {
	return StatusRequest{Text: confirmed.Text, Glyph: confirmed.Glyph}.Fingerprint()
}

func (e *Engine) startAttempt(active *chain) {
	active.attempt++
	e.state.counters.Attempts++

	id, attempt, request, ctx := active.id, active.attempt, active.request, active.context
	go func() {
		err := e.updater.UpdateStatus(ctx, request)
		e.post(attemptDone{chainID: id, attempt: attempt, err: err})
	}()
}

func (e *Engine) retryDue() {
	active := e.state.active
	if active == nil {
		return
	}
	e.logger.Info("retrying status update", "chain", active.id, "attempt", active.attempt+1)
	e.startAttempt(active)
}

// handleAttempt classifies a completed attempt and either finishes the
// chain or schedules its next retry.
func (e *Engine) handleAttempt(done attemptDone) {
	active := e.state.active
	if active == nil || active.id != done.chainID || active.attempt != done.attempt {
		e.logger.Debug("dropping result of superseded chain", "chain", done.chainID, "attempt", done.attempt)
		return
	}

	outcome := Outcome{
		ChainID: active.id,
		Request: active.request,
		Attempt: done.attempt,
		Result:  Classify(done.err),
		Err:     done.err,
	}

	switch outcome.Result {
	case ResultSuccess:
		outcome.Terminal = true
		e.finishChain()
		e.chainSucceeded(active)

	case ResultRejected:
		outcome.Terminal = true
		e.finishChain()
		e.chainFailed(active, outcome)

	case ResultTransient:
		if done.attempt > e.config.MaxRetries {
			outcome.Terminal = true
			e.finishChain()
			e.chainFailed(active, outcome)
			break
		}
		delay := e.retryDelay(active, done.err)
		outcome.RetryIn = delay
		e.retry.arm(delay)
		e.logger.Warn("status update failed, will retry",
			"chain", active.id, "attempt", done.attempt, "retry_in", delay, "error", done.err)
	}

	e.observer(outcome)

	if outcome.Terminal {
		e.afterChain(active)
	}
}

// retryDelay is the next step of the exponential schedule, raised to
// any delay the remote asked for.
func (e *Engine) retryDelay(active *chain, err error) time.Duration {
	delay := active.schedule.NextBackOff()
	if delay == backoff.Stop || delay <= 0 {
		delay = e.config.MaxDelay
	}
	var hint retryAfterHint
	if errors.As(err, &hint) && hint.RetryAfter() > delay {
		delay = hint.RetryAfter()
	}
	return delay
}

func (e *Engine) finishChain() {
	if e.state.active != nil {
		e.state.active.cancel()
	}
	e.state.active = nil
	e.retry.stop()
}
