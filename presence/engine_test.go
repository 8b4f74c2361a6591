// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDebounceCoalescesBurstToLatestEnvironment(t *testing.T) {
	h := newHarness(t, testConfig())

	h.connect("HomeWifi")
	h.advance(time.Second)
	h.connect("CoffeeShop")
	h.advance(time.Second)
	h.connect("CorpGuest")

	// Two seconds after the last event the delay has not run out.
	h.advance(2 * time.Second)
	if started := h.snapshot().Counters.DispatchesStarted; started != 0 {
		t.Fatalf("DispatchesStarted = %d before the burst settled, want 0", started)
	}

	h.advance(time.Second)
	request := h.confirm()
	if request.Text != "In the office" || request.Glyph != ":office:" {
		t.Fatalf("dispatched %s, want the CorpGuest status", request)
	}
	if request.Origin != OriginAutomatic || request.Silent {
		t.Errorf("origin=%s silent=%v, want automatic and not silent", request.Origin, request.Silent)
	}
	if want := testEpoch.Add(5 * time.Second).Add(15 * time.Minute); !request.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want dispatch time + 15m = %v", request.ExpiresAt, want)
	}

	snapshot := h.snapshot()
	if snapshot.Counters.DispatchesStarted != 1 {
		t.Errorf("DispatchesStarted = %d, want exactly 1", snapshot.Counters.DispatchesStarted)
	}
	if snapshot.Glyph() != ":office:" {
		t.Errorf("confirmed glyph = %q, want :office:", snapshot.Glyph())
	}
	if !snapshot.RefreshActive {
		t.Error("expiration clock not started after a confirmed automatic status")
	}
	h.expectNoCall()
}

func TestConfirmedGlyphWaitsForSuccess(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect("HomeWifi")
	h.advance(3 * time.Second)

	call := h.expectCall()
	snapshot := h.snapshot()
	if snapshot.Status != nil {
		t.Fatalf("status confirmed while the call is in flight: %+v", snapshot.Status)
	}
	if snapshot.InFlight == nil || snapshot.InFlight.Request.Glyph != ":house_with_garden:" {
		t.Fatalf("InFlight = %+v, want the HomeWifi request", snapshot.InFlight)
	}

	call.succeed()
	h.expectOutcome()
	if glyph := h.snapshot().Glyph(); glyph != ":house_with_garden:" {
		t.Errorf("confirmed glyph = %q after success", glyph)
	}
}

func TestExpirationClockRefreshesSilently(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")

	h.advance(10*time.Minute - time.Second)
	if started := h.snapshot().Counters.DispatchesStarted; started != 1 {
		t.Fatalf("refresh dispatched early: DispatchesStarted = %d", started)
	}

	h.advance(time.Second)
	refresh := h.confirm()
	if !refresh.Silent {
		t.Error("refresh dispatch is not silent")
	}
	dispatchedAt := testEpoch.Add(3*time.Second + 10*time.Minute)
	if want := dispatchedAt.Add(15 * time.Minute); !refresh.ExpiresAt.Equal(want) {
		t.Errorf("refresh ExpiresAt = %v, want %v", refresh.ExpiresAt, want)
	}
	if refresh.Glyph != ":house_with_garden:" {
		t.Errorf("refresh glyph = %q", refresh.Glyph)
	}

	// Only the first, non-silent update produced a notification.
	if titles := h.notifier.titles(); len(titles) != 1 {
		t.Errorf("notifications = %v, want one for the first update only", titles)
	}

	// The clock keeps ticking.
	h.advance(10 * time.Minute)
	h.confirm()
}

func TestStartingExpirationClockTwiceKeepsOneTimer(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")
	pending := h.clock.PendingCount()

	// A second confirmed environment dispatch restarts the clock.
	h.connect("CorpGuest")
	h.advance(3 * time.Second)
	h.confirm()

	if got := h.clock.PendingCount(); got != pending {
		t.Fatalf("PendingCount = %d after restarting the expiration clock, want %d", got, pending)
	}

	// One refresh fires at the new period, not two.
	h.advance(10 * time.Minute)
	h.confirm()
	h.expectNoCall()
	if started := h.snapshot().Counters.DispatchesStarted; started != 3 {
		t.Errorf("DispatchesStarted = %d, want 3", started)
	}
}

func TestManualStatusSuppressesAutomaticUpdates(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")
	manual := h.enterManual("Lunch", ":fork_and_knife:", ExpireAfter(60))

	if manual.Origin != OriginManual {
		t.Errorf("manual request origin = %s", manual.Origin)
	}
	if want := h.clock.Now().Add(time.Hour); !manual.ExpiresAt.Equal(want) {
		t.Errorf("manual ExpiresAt = %v, want %v", manual.ExpiresAt, want)
	}

	h.connect("CorpGuest")
	h.advance(time.Minute)
	snapshot := h.snapshot()
	if snapshot.Counters.DispatchesStarted != 2 {
		t.Fatalf("environment change dispatched during manual mode: DispatchesStarted = %d", snapshot.Counters.DispatchesStarted)
	}
	if snapshot.Environment != "CorpGuest" {
		t.Errorf("Environment = %q, want the change recorded", snapshot.Environment)
	}

	// Refresh ticks keep running but do nothing.
	h.advance(20 * time.Minute)
	if started := h.snapshot().Counters.DispatchesStarted; started != 2 {
		t.Fatalf("refresh dispatched during manual mode: DispatchesStarted = %d", started)
	}
	if !h.snapshot().RefreshActive {
		t.Error("expiration clock stopped by manual mode")
	}
	h.expectNoCall()

	receipt, err := h.engine.ResumeAutomatic(context.Background())
	if err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	if !receipt.Dispatched {
		t.Fatalf("ResumeAutomatic did not dispatch: %s", receipt.Reason)
	}
	resumed := h.confirm()
	if resumed.Glyph != ":office:" {
		t.Errorf("resume dispatched %s, want the CorpGuest status", resumed)
	}
	if mode := h.snapshot().Mode; mode != ModeAutomatic {
		t.Errorf("mode = %s after resume", mode)
	}
}

func TestSetManualStatusRejectsImmediateExpiry(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")

	if _, err := h.engine.SetManualStatus(context.Background(), "Focus", ":headphones:", ExpirationSpec{}); err == nil {
		t.Fatal("SetManualStatus with a zero expiration succeeded")
	}
	h.expectNoCall()
	if mode := h.snapshot().Mode; mode != ModeAutomatic {
		t.Errorf("mode = %s, want automatic", mode)
	}
}

func TestManualModeRequiresConfirmation(t *testing.T) {
	config := testConfig()
	config.MaxRetries = 0
	h := newHarness(t, config)

	if _, err := h.engine.SetManualStatus(context.Background(), "Focus", ":headphones:", NeverSpec()); err != nil {
		t.Fatalf("SetManualStatus: %v", err)
	}
	call := h.expectCall()
	if mode := h.snapshot().Mode; mode != ModeAutomatic {
		t.Fatalf("mode = %s while the manual update is in flight", mode)
	}

	call.reject("invalid_auth")
	outcome := h.expectOutcome()
	if outcome.Result != ResultRejected || !outcome.Terminal {
		t.Fatalf("outcome = %+v, want terminal rejection", outcome)
	}

	snapshot := h.snapshot()
	if snapshot.Mode != ModeAutomatic {
		t.Errorf("mode = %s after a rejected manual update, want automatic", snapshot.Mode)
	}
	if snapshot.LastFailure == nil || snapshot.LastFailure.Result != ResultRejected {
		t.Errorf("LastFailure = %+v", snapshot.LastFailure)
	}
	if titles := h.notifier.titles(); !slices.Equal(titles, []string{"Status update failed"}) {
		t.Errorf("notifications = %v", titles)
	}
}

func TestBackoffSchedule(t *testing.T) {
	h := newHarness(t, testConfig())
	if _, err := h.engine.SetManualStatus(context.Background(), "Travelling", ":airplane:", EndOfDaySpec()); err != nil {
		t.Fatalf("SetManualStatus: %v", err)
	}

	for attempt, delay := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		h.expectCall().failTransient()
		outcome := h.expectOutcome()
		if outcome.Result != ResultTransient || outcome.Terminal {
			t.Fatalf("attempt %d: outcome = %+v, want non-terminal transient", attempt+1, outcome)
		}
		if outcome.RetryIn != delay {
			t.Fatalf("attempt %d: RetryIn = %v, want %v", attempt+1, outcome.RetryIn, delay)
		}

		h.advance(delay - time.Millisecond)
		if attempts := h.snapshot().Counters.Attempts; attempts != attempt+1 {
			t.Fatalf("retry started before its delay: Attempts = %d", attempts)
		}
		h.advance(time.Millisecond)
	}

	h.expectCall().failTransient()
	final := h.expectOutcome()
	if !final.Terminal || final.Attempt != 4 {
		t.Fatalf("final outcome = %+v, want terminal on attempt 4", final)
	}

	h.advance(time.Hour)
	snapshot := h.snapshot()
	if snapshot.Counters.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4 (no attempt after exhaustion)", snapshot.Counters.Attempts)
	}
	if snapshot.InFlight != nil {
		t.Errorf("chain still in flight after exhaustion: %+v", snapshot.InFlight)
	}
	if snapshot.Mode != ModeAutomatic || snapshot.Counters.TerminalFailures != 1 {
		t.Errorf("mode=%s terminal failures=%d", snapshot.Mode, snapshot.Counters.TerminalFailures)
	}
	h.expectNoCall()
}

type rateLimited struct{ wait time.Duration }

func (e rateLimited) Error() string             { return "ratelimited" }
func (e rateLimited) RetryAfter() time.Duration { return e.wait }

func TestRetryAfterHintExtendsDelay(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect("HomeWifi")
	h.advance(3 * time.Second)

	h.expectCall().fail(rateLimited{wait: 30 * time.Second})
	if outcome := h.expectOutcome(); outcome.RetryIn != 30*time.Second {
		t.Fatalf("RetryIn = %v, want the 30s the remote asked for", outcome.RetryIn)
	}
	h.advance(29 * time.Second)
	if attempts := h.snapshot().Counters.Attempts; attempts != 1 {
		t.Fatalf("retried before Retry-After elapsed: Attempts = %d", attempts)
	}
	h.advance(time.Second)
	h.confirm()
}

func TestManualOverrideCancelsRetryChain(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect("HomeWifi")
	h.advance(3 * time.Second)

	h.expectCall().failTransient()
	h.expectOutcome()

	if _, err := h.engine.SetManualStatus(context.Background(), "Lunch", ":fork_and_knife:", ExpireAfter(30)); err != nil {
		t.Fatalf("SetManualStatus: %v", err)
	}
	manualCall := h.expectCall()
	if manualCall.request.Text != "Lunch" {
		t.Fatalf("next call is %s, want the manual status", manualCall.request)
	}

	// The automatic chain's retry timer must be gone.
	h.advance(time.Minute)
	h.expectNoCall()

	manualCall.succeed()
	h.expectOutcome()
	snapshot := h.snapshot()
	if snapshot.Glyph() != ":fork_and_knife:" || snapshot.Mode != ModeManual {
		t.Errorf("glyph=%q mode=%s, want the manual status", snapshot.Glyph(), snapshot.Mode)
	}
	if snapshot.Counters.Superseded != 1 {
		t.Errorf("Superseded = %d, want 1", snapshot.Counters.Superseded)
	}
}

func TestSupersededResultIsDiscarded(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect("HomeWifi")
	h.advance(3 * time.Second)
	stale := h.expectCall()

	h.connect("CorpGuest")
	h.advance(3 * time.Second)
	current := h.expectCall()

	if stale.ctx.Err() == nil {
		t.Error("superseded call's context was not cancelled")
	}

	current.succeed()
	outcome := h.expectOutcome()
	if outcome.Request.Glyph != ":office:" {
		t.Fatalf("outcome for %s, want the newer request", outcome.Request)
	}
	if glyph := h.snapshot().Glyph(); glyph != ":office:" {
		t.Errorf("confirmed glyph = %q, stale result leaked in", glyph)
	}
}

func TestAutomaticUpdateDefersToOperatorChain(t *testing.T) {
	h := newHarness(t, testConfig())
	if _, err := h.engine.SetManualStatus(context.Background(), "Focus", ":headphones:", NeverSpec()); err != nil {
		t.Fatal(err)
	}
	manualCall := h.expectCall()

	h.connect("HomeWifi")
	h.advance(3 * time.Second)
	snapshot := h.snapshot()
	if snapshot.Counters.Skipped != 1 || snapshot.InFlight == nil || snapshot.InFlight.Request.Text != "Focus" {
		t.Fatalf("automatic update did not defer: %+v", snapshot)
	}

	// The manual update fails, so the deferred environment status goes
	// out once it is done.
	manualCall.reject("invalid_arguments")
	h.expectOutcome()
	deferred := h.confirm()
	if deferred.Glyph != ":house_with_garden:" {
		t.Errorf("deferred dispatch = %s", deferred)
	}
}

func TestUnknownEnvironmentPreservesStatus(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")

	h.connect("CoffeeShop")
	h.advance(3 * time.Second)
	h.connect("")
	h.advance(3 * time.Second)

	snapshot := h.snapshot()
	if snapshot.Counters.DispatchesStarted != 1 {
		t.Errorf("DispatchesStarted = %d, want no dispatch for unmapped networks", snapshot.Counters.DispatchesStarted)
	}
	if snapshot.Glyph() != ":house_with_garden:" {
		t.Errorf("confirmed glyph = %q, want it untouched", snapshot.Glyph())
	}
	if snapshot.Connected {
		t.Error("Connected after an empty observation")
	}
	h.expectNoCall()
}

func TestUnknownEnvironmentDispatchesDefault(t *testing.T) {
	config := testConfig()
	config.PreserveOnUnknown = false
	config.DefaultStatus = StatusTemplate{Text: "Out and about", Glyph: ":walking:"}
	h := newHarness(t, config)
	h.settleOn("HomeWifi")

	h.connect("CoffeeShop")
	h.advance(3 * time.Second)
	request := h.confirm()
	if request.Text != "Out and about" || !request.NeverExpires() {
		t.Errorf("default dispatch = %+v", request)
	}

	snapshot := h.snapshot()
	if snapshot.Glyph() != ":walking:" {
		t.Errorf("confirmed glyph = %q", snapshot.Glyph())
	}
	if snapshot.RefreshActive {
		t.Error("expiration clock still running after the default status")
	}
}

func TestClearReturnsToAutomaticOnSuccess(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")
	h.enterManual("Vacation", ":palm_tree:", NeverSpec())

	if _, err := h.engine.ClearStatus(context.Background()); err != nil {
		t.Fatalf("ClearStatus: %v", err)
	}
	call := h.expectCall()
	if !call.request.IsClear() || !call.request.NeverExpires() {
		t.Fatalf("clear dispatched %+v", call.request)
	}
	if mode := h.snapshot().Mode; mode != ModeManual {
		t.Fatalf("mode = %s before the clear is confirmed", mode)
	}

	call.succeed()
	h.expectOutcome()
	snapshot := h.snapshot()
	if snapshot.Mode != ModeAutomatic {
		t.Errorf("mode = %s after clear", snapshot.Mode)
	}
	if snapshot.RefreshActive {
		t.Error("expiration clock running after clear")
	}
	if snapshot.Glyph() != "" {
		t.Errorf("confirmed glyph = %q after clear", snapshot.Glyph())
	}
}

func TestResumeInAutomaticModeAlwaysDispatches(t *testing.T) {
	h := newHarness(t, testConfig())
	first := h.settleOn("HomeWifi")

	receipt, err := h.engine.ResumeAutomatic(context.Background())
	if err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	if !receipt.Dispatched || receipt.ChainID == "" {
		t.Fatalf("receipt = %+v, want a dispatch", receipt)
	}
	again := h.confirm()
	if again.Fingerprint() != first.Fingerprint() {
		t.Errorf("resume dispatched %s, want the same status", again)
	}
	if mode := h.snapshot().Mode; mode != ModeAutomatic {
		t.Errorf("mode = %s", mode)
	}
}

func TestNetworkChangeSupersedesResumeRetry(t *testing.T) {
	config := testConfig()
	config.DebounceDelay = time.Second
	h := newHarness(t, config)
	h.settleOn("HomeWifi")

	if _, err := h.engine.ResumeAutomatic(context.Background()); err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	resumed := h.expectCall()
	resumed.failTransient()
	if outcome := h.expectOutcome(); outcome.Terminal {
		t.Fatalf("transient failure ended the chain: %+v", outcome)
	}

	h.connect("CorpGuest")
	h.advance(time.Second)
	current := h.expectCall()
	if current.request.Glyph != ":office:" {
		t.Fatalf("dispatch after network change = %s, want the office status", current.request)
	}
	snapshot := h.snapshot()
	if snapshot.Counters.Skipped != 0 || snapshot.Counters.Superseded != 1 {
		t.Errorf("Skipped = %d, Superseded = %d; want the resume chain replaced",
			snapshot.Counters.Skipped, snapshot.Counters.Superseded)
	}

	// The resume chain's retry would have been due by now.
	h.advance(2 * time.Second)
	h.expectNoCall()

	current.succeed()
	h.expectOutcome()
	if glyph := h.snapshot().Glyph(); glyph != ":office:" {
		t.Errorf("confirmed glyph = %q, want :office:", glyph)
	}
}

func TestResumeSupersedesManualChain(t *testing.T) {
	h := newHarness(t, testConfig())
	h.settleOn("HomeWifi")
	if _, err := h.engine.SetManualStatus(context.Background(), "Focus", ":headphones:", NeverSpec()); err != nil {
		t.Fatal(err)
	}
	manual := h.expectCall()

	receipt, err := h.engine.ResumeAutomatic(context.Background())
	if err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	if !receipt.Dispatched {
		t.Fatalf("resume deferred behind the manual chain: %+v", receipt)
	}
	if manual.ctx.Err() == nil {
		t.Error("manual call's context was not cancelled")
	}
	if request := h.confirm(); request.Glyph != ":house_with_garden:" {
		t.Errorf("resume dispatched %s", request)
	}
}

func TestResumeWithUnmappedEnvironment(t *testing.T) {
	h := newHarness(t, testConfig())
	h.enterManual("Lunch", ":fork_and_knife:", ExpireAfter(60))
	h.connect("CoffeeShop")

	receipt, err := h.engine.ResumeAutomatic(context.Background())
	if err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	if receipt.Dispatched || receipt.Reason == "" {
		t.Errorf("receipt = %+v, want no dispatch with a reason", receipt)
	}
	snapshot := h.snapshot()
	if snapshot.Mode != ModeAutomatic {
		t.Errorf("mode = %s after resume", snapshot.Mode)
	}
	if snapshot.Glyph() != ":fork_and_knife:" {
		t.Errorf("status changed to %q", snapshot.Glyph())
	}
}

func TestEndOfDayManualStatus(t *testing.T) {
	local := time.FixedZone("UTC+1", 60*60)
	h := newHarnessAt(t, testConfig(), time.Date(2024, 1, 1, 23, 30, 0, 0, local))

	request := h.enterManual("Late shift", ":owl:", EndOfDaySpec())
	if want := time.Date(2024, 1, 1, 23, 59, 59, 0, local); !request.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", request.ExpiresAt, want)
	}
}

func TestMissingCredentialIsRejectedWithoutRetry(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect("HomeWifi")
	h.advance(3 * time.Second)

	h.expectCall().fail(errors.Join(ErrRejected, errors.New("no token configured")))
	outcome := h.expectOutcome()
	if outcome.Result != ResultRejected || !outcome.Terminal {
		t.Fatalf("outcome = %+v", outcome)
	}
	h.advance(time.Minute)
	if attempts := h.snapshot().Counters.Attempts; attempts != 1 {
		t.Errorf("Attempts = %d, want no retry of a rejection", attempts)
	}
}

func TestCommandsAfterStopFail(t *testing.T) {
	engine := New(testConfig(), UpdaterFunc(func(context.Context, StatusRequest) error { return nil }), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- engine.Run(ctx) }()
	cancel()
	if err := <-stopped; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := engine.ClearStatus(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("ClearStatus after stop: err = %v, want ErrStopped", err)
	}
	if _, err := engine.Snapshot(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Snapshot after stop: err = %v, want ErrStopped", err)
	}
	if err := engine.Run(context.Background()); err == nil {
		t.Error("second Run succeeded")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	config := testConfig()
	config.RefreshInterval = config.Expiration
	config.MaxRetries = -1
	config.Mapping[""] = StatusTemplate{Text: "nowhere"}
	err := config.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, fragment := range []string{"refresh interval", "max retries", "empty identifier"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %q", err, fragment)
		}
	}
}
