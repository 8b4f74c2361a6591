// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/testutil"
)

const waitTimeout = 5 * time.Second

var testEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// remoteCall is one UpdateStatus call held open until the test answers.
type remoteCall struct {
	request StatusRequest
	ctx     context.Context
	reply   chan error
}

func (c remoteCall) succeed()           { c.reply <- nil }
func (c remoteCall) fail(err error)     { c.reply <- err }
func (c remoteCall) failTransient()     { c.reply <- errors.New("connection reset by peer") }
func (c remoteCall) reject(code string) { c.reply <- fmt.Errorf("%w: %s", ErrRejected, code) }

// scriptedRemote hands every call to the test.
type scriptedRemote struct {
	calls chan remoteCall
}

func (r *scriptedRemote) UpdateStatus(ctx context.Context, request StatusRequest) error {
	call := remoteCall{request: request, ctx: ctx, reply: make(chan error, 1)}
	r.calls <- call
	select {
	case err := <-call.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type notification struct{ title, body string }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title, body})
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var titles []string
	for _, sent := range n.sent {
		titles = append(titles, sent.title)
	}
	return titles
}

type harness struct {
	t        *testing.T
	clock    *clock.FakeClock
	remote   *scriptedRemote
	notifier *recordingNotifier
	outcomes chan Outcome
	engine   *Engine
}

func testConfig() Config {
	config := DefaultConfig()
	config.Mapping = EnvironmentMapping{
		"HomeWifi":  {Text: "Working from home", Glyph: ":house_with_garden:"},
		"CorpGuest": {Text: "In the office", Glyph: ":office:"},
	}
	return config
}

func newHarness(t *testing.T, config Config) *harness {
	return newHarnessAt(t, config, testEpoch)
}

func newHarnessAt(t *testing.T, config Config, start time.Time) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clock:    clock.Fake(start),
		remote:   &scriptedRemote{calls: make(chan remoteCall, 16)},
		notifier: &recordingNotifier{},
		outcomes: make(chan Outcome, 16),
	}
	chainNumber := 0
	h.engine = New(config, h.remote, Options{
		Clock:    h.clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier: h.notifier,
		Observer: func(outcome Outcome) { h.outcomes <- outcome },
		NewChainID: func() string {
			chainNumber++
			return fmt.Sprintf("chain-%d", chainNumber)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := h.engine.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, stopped, waitTimeout, "engine did not stop")
	})
	return h
}

// connect reports an environment and waits until the engine has armed
// the debounce timer.
func (h *harness) connect(id string) {
	h.t.Helper()
	h.engine.EnvironmentChanged(id, id != "")
	h.snapshot()
}

// advance moves the fake clock and waits for the engine to process
// whatever fired.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	h.snapshot()
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snapshot, err := h.engine.Snapshot(context.Background())
	if err != nil {
		h.t.Fatalf("Snapshot: %v", err)
	}
	return snapshot
}

func (h *harness) expectCall() remoteCall {
	h.t.Helper()
	return testutil.RequireReceive(h.t, h.remote.calls, waitTimeout, "waiting for remote call")
}

func (h *harness) expectOutcome() Outcome {
	h.t.Helper()
	return testutil.RequireReceive(h.t, h.outcomes, waitTimeout, "waiting for attempt outcome")
}

func (h *harness) expectNoCall() {
	h.t.Helper()
	select {
	case call := <-h.remote.calls:
		h.t.Fatalf("unexpected remote call for %s", call.request)
	default:
	}
}

// confirm answers the next call with success and returns its request.
func (h *harness) confirm() StatusRequest {
	h.t.Helper()
	call := h.expectCall()
	call.succeed()
	outcome := h.expectOutcome()
	if outcome.Result != ResultSuccess {
		h.t.Fatalf("outcome = %v, want success", outcome.Result)
	}
	return call.request
}

// settleOn connects to id, lets the debounce run out, and confirms the
// resulting dispatch.
func (h *harness) settleOn(id string) StatusRequest {
	h.t.Helper()
	h.connect(id)
	h.advance(h.engine.config.DebounceDelay)
	return h.confirm()
}

func (h *harness) enterManual(text, glyph string, expiration ExpirationSpec) StatusRequest {
	h.t.Helper()
	receipt, err := h.engine.SetManualStatus(context.Background(), text, glyph, expiration)
	if err != nil {
		h.t.Fatalf("SetManualStatus: %v", err)
	}
	if !receipt.Dispatched {
		h.t.Fatalf("SetManualStatus not dispatched: %s", receipt.Reason)
	}
	request := h.confirm()
	if mode := h.snapshot().Mode; mode != ModeManual {
		h.t.Fatalf("mode = %s after confirmed manual status, want manual", mode)
	}
	return request
}
