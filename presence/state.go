// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"fmt"
	"time"
)

// Mode is the state machine state.
type Mode int

const (
	// ModeAutomatic follows the environment mapping.
	ModeAutomatic Mode = iota

	// ModeManual holds an operator status. Environment changes and
	// expiration refreshes are ignored until the operator clears the
	// status or resumes automatic mode.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "automatic"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "automatic":
		*m = ModeAutomatic
	case "manual":
		*m = ModeManual
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Receipt acknowledges that the engine accepted a command. It says
// nothing about the outcome of the remote call.
type Receipt struct {
	// ChainID identifies the dispatch chain the command started. Empty
	// when nothing was dispatched.
	ChainID    string `json:"chain_id,omitempty"`
	Dispatched bool   `json:"dispatched"`

	// Reason explains why nothing was dispatched.
	Reason string `json:"reason,omitempty"`
}

// Outcome reports one attempt of a dispatch chain.
type Outcome struct {
	ChainID string
	Request StatusRequest

	// Attempt counts from 1.
	Attempt int
	Result  Result
	Err     error

	// Terminal is set on the last outcome of a chain: success,
	// rejection, or a transient failure with no retries left.
	Terminal bool

	// RetryIn is the delay before the next attempt, set when a
	// transient failure scheduled a retry.
	RetryIn time.Duration
}

// ConfirmedStatus is the last status the remote accepted.
type ConfirmedStatus struct {
	Text        string    `json:"text"`
	Glyph       string    `json:"glyph"`
	ExpiresAt   time.Time `json:"expires_at"`
	Origin      Origin    `json:"origin"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// ChainInfo describes the dispatch chain in flight.
type ChainInfo struct {
	ID      string        `json:"id"`
	Purpose string        `json:"purpose"`
	Request StatusRequest `json:"request"`
	Attempt int           `json:"attempt"`

	// RetryPending is set while the chain waits out a backoff delay.
	RetryPending bool `json:"retry_pending"`
}

// Failure records the last chain that ended without success.
type Failure struct {
	ChainID string        `json:"chain_id"`
	Request StatusRequest `json:"request"`
	Result  Result        `json:"result"`
	Error   string        `json:"error"`
	At      time.Time     `json:"at"`
}

// Counters accumulate over the engine lifetime.
type Counters struct {
	EnvironmentEvents int `json:"environment_events"`
	DispatchesStarted int `json:"dispatches_started"`
	Attempts          int `json:"attempts"`
	Successes         int `json:"successes"`
	TerminalFailures  int `json:"terminal_failures"`
	Superseded        int `json:"superseded"`
	Skipped           int `json:"skipped"`
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Mode Mode `json:"mode"`

	// Status is nil until the remote has confirmed an update.
	Status *ConfirmedStatus `json:"status,omitempty"`

	// Environment is the latest observed identifier. Connected is
	// false when the notifier reported no connectivity or nothing has
	// been observed yet.
	Environment string `json:"environment,omitempty"`
	Connected   bool   `json:"connected"`
	Mapped      bool   `json:"mapped"`

	InFlight    *ChainInfo `json:"in_flight,omitempty"`
	LastFailure *Failure   `json:"last_failure,omitempty"`

	DebouncePending bool `json:"debounce_pending"`
	RefreshActive   bool `json:"refresh_active"`

	Counters Counters `json:"counters"`
}

// Glyph returns the confirmed glyph, or "" when nothing is confirmed.
func (s Snapshot) Glyph() string {
	if s.Status == nil {
		return ""
	}
	return s.Status.Glyph
}
