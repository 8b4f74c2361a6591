// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/presence/lib/clock"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("presence engine stopped")

// Config is the engine's behavior. It is fixed for the engine's
// lifetime.
type Config struct {
	// Mapping selects the automatic status for each environment.
	Mapping EnvironmentMapping

	// DefaultStatus is dispatched for unmapped environments and lost
	// connectivity when PreserveOnUnknown is false. The zero value
	// clears the status.
	DefaultStatus StatusTemplate

	// PreserveOnUnknown leaves the remote status untouched when the
	// environment is unmapped or disconnected.
	PreserveOnUnknown bool

	// DebounceDelay is how long environment changes must settle before
	// the latest one is evaluated. Default 3s.
	DebounceDelay time.Duration

	// Expiration is the lifetime of each automatic status. Default 15m.
	Expiration time.Duration

	// RefreshInterval is the expiration clock period. Must be shorter
	// than Expiration. Default 10m.
	RefreshInterval time.Duration

	// MaxRetries is the number of retries after the first attempt of a
	// chain. Zero disables retrying. Default 3.
	MaxRetries int

	// BaseDelay is the first retry delay. Each later retry doubles it.
	// Default 2s.
	BaseDelay time.Duration

	// MaxDelay caps a single retry delay. Default 5m.
	MaxDelay time.Duration
}

// DefaultConfig returns the stock timing with an empty mapping.
func DefaultConfig() Config {
	return Config{
		PreserveOnUnknown: true,
		DebounceDelay:     3 * time.Second,
		Expiration:        15 * time.Minute,
		RefreshInterval:   10 * time.Minute,
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          5 * time.Minute,
	}
}

// Validate reports configuration the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DebounceDelay <= 0 {
		errs = append(errs, fmt.Errorf("debounce delay must be positive, got %s", c.DebounceDelay))
	}
	if c.Expiration <= 0 {
		errs = append(errs, fmt.Errorf("expiration must be positive, got %s", c.Expiration))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval))
	} else if c.RefreshInterval >= c.Expiration {
		errs = append(errs, fmt.Errorf("refresh interval %s must be shorter than expiration %s", c.RefreshInterval, c.Expiration))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry base delay must be positive, got %s", c.BaseDelay))
	}
	if c.MaxDelay < c.BaseDelay {
		errs = append(errs, fmt.Errorf("retry max delay %s is shorter than base delay %s", c.MaxDelay, c.BaseDelay))
	}
	for id := range c.Mapping {
		if id == "" {
			errs = append(errs, fmt.Errorf("environment mapping has an empty identifier"))
		}
	}
	return errors.Join(errs...)
}

// Options holds the engine's collaborators. Every field is optional.
type Options struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	Notifier Notifier

	// Observer is called on the engine goroutine after each attempt
	// completes and the engine has acted on it. It must not block and
	// must not call back into the engine.
	Observer func(Outcome)

	// NewChainID names dispatch chains. Default uuid.NewString.
	NewChainID func() string
}

// Engine is the status state machine. Create one with New, start it
// with Run, and drive it with EnvironmentChanged and the command
// methods. All methods are safe for concurrent use.
type Engine struct {
	config     Config
	updater    Updater
	clock      clock.Clock
	logger     *slog.Logger
	notifier   Notifier
	observer   func(Outcome)
	newChainID func() string

	inboxMutex sync.Mutex
	inbox      []any
	wake       chan struct{}

	started atomic.Bool
	done    chan struct{}

	// Everything below is owned by the Run goroutine.
	runContext context.Context
	state      engineState
	debounce   *timerSlot
	refresh    *timerSlot
	retry      *timerSlot
}

// engineState is the mutable state the loop owns.
type engineState struct {
	mode      Mode
	confirmed *ConfirmedStatus

	environment string
	connected   bool

	active      *chain
	lastFailure *Failure

	// reevaluate is set when an environment evaluation was skipped
	// because an operator chain was in flight.
	reevaluate bool

	counters Counters
}

// New creates an engine. It panics if config is invalid; callers load
// configuration through a validating path first.
func New(config Config, updater Updater, options Options) *Engine {
	if err := config.Validate(); err != nil {
		panic("presence: invalid engine config: " + err.Error())
	}
	if updater == nil {
		panic("presence: nil updater")
	}

	engine := &Engine{
		config:     config,
		updater:    updater,
		clock:      options.Clock,
		logger:     options.Logger,
		notifier:   options.Notifier,
		observer:   options.Observer,
		newChainID: options.NewChainID,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	if engine.clock == nil {
		engine.clock = clock.Real()
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}
	engine.logger = engine.logger.With("component", "presence")
	if engine.notifier == nil {
		engine.notifier = discardNotifier{}
	}
	if engine.observer == nil {
		engine.observer = func(Outcome) {}
	}
	if engine.newChainID == nil {
		engine.newChainID = uuid.NewString
	}

	engine.debounce = newTimerSlot(roleDebounce, engine.clock, engine.post)
	engine.refresh = newTimerSlot(roleRefresh, engine.clock, engine.post)
	engine.retry = newTimerSlot(roleRetry, engine.clock, engine.post)
	return engine
}

// Run processes events until ctx is cancelled, then stops every timer
// and cancels the in-flight chain. It may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("presence: engine already running")
	}

	runContext, cancel := context.WithCancel(ctx)
	e.runContext = runContext
	defer func() {
		cancel()
		e.shutdown()
		close(e.done)
	}()

	e.logger.Info("presence engine started",
		"environments", len(e.config.Mapping),
		"preserve_on_unknown", e.config.PreserveOnUnknown,
		"debounce_delay", e.config.DebounceDelay,
		"refresh_interval", e.config.RefreshInterval,
	)

	for {
		for _, event := range e.takeInbox() {
			e.handle(event)
		}
		select {
		case <-runContext.Done():
			return nil
		case <-e.wake:
		}
	}
}

func (e *Engine) shutdown() {
	e.debounce.stop()
	e.refresh.stop()
	e.retry.stop()
	if e.state.active != nil {
		e.state.active.cancel()
		e.state.active = nil
	}
	e.logger.Info("presence engine stopped")
}

// post appends an event to the inbox and wakes the loop. It never
// blocks, so timer callbacks and updater goroutines can call it freely.
func (e *Engine) post(event any) {
	e.inboxMutex.Lock()
	e.inbox = append(e.inbox, event)
	e.inboxMutex.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) takeInbox() []any {
	e.inboxMutex.Lock()
	defer e.inboxMutex.Unlock()
	events := e.inbox
	e.inbox = nil
	return events
}

func (e *Engine) handle(event any) {
	switch event := event.(type) {
	case environmentChanged:
		e.handleEnvironment(event)
	case timerFired:
		e.handleTimer(event)
	case attemptDone:
		e.handleAttempt(event)
	case commandRequest:
		event.reply <- e.handleCommand(event)
	case snapshotRequest:
		event.reply <- e.snapshot()
	default:
		e.logger.Error("unknown engine event", "type", fmt.Sprintf("%T", event))
	}
}

func (e *Engine) handleTimer(firing timerFired) {
	var slot *timerSlot
	switch firing.role {
	case roleDebounce:
		slot = e.debounce
	case roleRefresh:
		slot = e.refresh
	case roleRetry:
		slot = e.retry
	}
	if slot == nil || !slot.accept(firing) {
		e.logger.Debug("dropping stale timer firing", "timer", firing.role)
		return
	}

	switch firing.role {
	case roleDebounce:
		e.debounceSettled()
	case roleRefresh:
		e.refreshTick()
	case roleRetry:
		e.retryDue()
	}
}

// environmentChanged is posted by EnvironmentChanged.
type environmentChanged struct {
	id        string
	connected bool
}

// EnvironmentChanged records a new environment observation. An empty id
// or connected=false means no connectivity. It never blocks.
func (e *Engine) EnvironmentChanged(id string, connected bool) {
	if id == "" {
		connected = false
	}
	if !connected {
		id = ""
	}
	e.post(environmentChanged{id: id, connected: connected})
}

type commandKind int

const (
	commandSetManual commandKind = iota
	commandClear
	commandResume
)

type commandRequest struct {
	kind       commandKind
	template   StatusTemplate
	expiration ExpirationSpec
	reply      chan Receipt
}

type snapshotRequest struct {
	reply chan Snapshot
}

// SetManualStatus dispatches an operator status. The engine enters
// manual mode once the remote confirms it. The expiration is resolved
// when the engine accepts the command.
func (e *Engine) SetManualStatus(ctx context.Context, text, glyph string, expiration ExpirationSpec) (Receipt, error) {
	if err := expiration.Validate(); err != nil {
		return Receipt{}, err
	}
	return e.command(ctx, commandRequest{
		kind:       commandSetManual,
		template:   StatusTemplate{Text: text, Glyph: glyph},
		expiration: expiration,
	})
}

// ClearStatus dispatches an empty status. The engine returns to
// automatic mode and stops the expiration clock once the remote
// confirms it.
func (e *Engine) ClearStatus(ctx context.Context) (Receipt, error) {
	return e.command(ctx, commandRequest{kind: commandClear})
}

// ResumeAutomatic returns to automatic mode at once and evaluates the
// current environment without waiting for the debounce delay.
func (e *Engine) ResumeAutomatic(ctx context.Context) (Receipt, error) {
	return e.command(ctx, commandRequest{kind: commandResume})
}

func (e *Engine) command(ctx context.Context, request commandRequest) (Receipt, error) {
	request.reply = make(chan Receipt, 1)
	e.post(request)
	select {
	case receipt := <-request.reply:
		return receipt, nil
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case <-e.done:
		return Receipt{}, ErrStopped
	}
}

// Snapshot returns a consistent copy of the engine state. Events posted
// before the call are reflected in the result.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	request := snapshotRequest{reply: make(chan Snapshot, 1)}
	e.post(request)
	select {
	case snapshot := <-request.reply:
		return snapshot, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-e.done:
		return Snapshot{}, ErrStopped
	}
}

func (e *Engine) snapshot() Snapshot {
	state := &e.state
	snapshot := Snapshot{
		Mode:            state.mode,
		Environment:     state.environment,
		Connected:       state.connected,
		DebouncePending: e.debounce.active(),
		RefreshActive:   e.refresh.active(),
		Counters:        state.counters,
	}
	if _, mapped := e.config.Mapping.Lookup(state.environment); mapped && state.connected {
		snapshot.Mapped = true
	}
	if state.confirmed != nil {
		confirmed := *state.confirmed
		snapshot.Status = &confirmed
	}
	if state.lastFailure != nil {
		failure := *state.lastFailure
		snapshot.LastFailure = &failure
	}
	if active := state.active; active != nil {
		snapshot.InFlight = &ChainInfo{
			ID:           active.id,
			Purpose:      active.purpose.String(),
			Request:      active.request,
			Attempt:      active.attempt,
			RetryPending: e.retry.active(),
		}
	}
	return snapshot
}
