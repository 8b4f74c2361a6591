// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Origin records who asked for a status.
type Origin int

const (
	// OriginAutomatic statuses come from the environment mapping, the
	// default status, or the expiration clock.
	OriginAutomatic Origin = iota

	// OriginManual statuses come from an operator command.
	OriginManual
)

func (o Origin) String() string {
	switch o {
	case OriginAutomatic:
		return "automatic"
	case OriginManual:
		return "manual"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// MarshalText encodes the origin by name.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an origin name.
func (o *Origin) UnmarshalText(text []byte) error {
	switch string(text) {
	case "automatic":
		*o = OriginAutomatic
	case "manual":
		*o = OriginManual
	default:
		return fmt.Errorf("unknown origin %q", text)
	}
	return nil
}

// StatusRequest is one status to send to the remote. It is a value
// type and is never modified after construction.
type StatusRequest struct {
	Text  string `json:"text"`
	Glyph string `json:"glyph"`

	// ExpiresAt is when the remote should drop the status on its own.
	// The zero time means never.
	ExpiresAt time.Time `json:"expires_at"`

	Origin Origin `json:"origin"`

	// Silent requests produce no success notification. Routine
	// expiration refreshes are silent.
	Silent bool `json:"silent,omitempty"`
}

// NeverExpires reports whether the status has no expiration.
func (r StatusRequest) NeverExpires() bool {
	return r.ExpiresAt.IsZero()
}

// ExpirationUnix returns the expiration as Unix seconds, or 0 for a
// status that never expires. This is the remote wire representation.
func (r StatusRequest) ExpirationUnix() int64 {
	if r.NeverExpires() {
		return 0
	}
	return r.ExpiresAt.Unix()
}

// IsClear reports whether the request carries neither text nor glyph.
func (r StatusRequest) IsClear() bool {
	return r.Text == "" && r.Glyph == ""
}

// Fingerprint identifies the visible content of the status: text and
// glyph, not expiration or origin. Two requests with the same
// fingerprint look identical to anyone reading the status.
func (r StatusRequest) Fingerprint() string {
	hasher := blake3.NewDeriveKey("presence status fingerprint v1")
	hasher.Write([]byte(r.Text))
	hasher.Write([]byte{0})
	hasher.Write([]byte(r.Glyph))
	return hex.EncodeToString(hasher.Sum(nil)[:8])
}

func (r StatusRequest) String() string {
	if r.IsClear() {
		return "(cleared)"
	}
	label := r.Text
	if r.Glyph != "" {
		label = r.Glyph + " " + r.Text
	}
	if r.NeverExpires() {
		return label
	}
	return label + " until " + r.ExpiresAt.Format("15:04")
}

// StatusTemplate is the visible part of a status. Expiration is
// computed when the template is dispatched.
type StatusTemplate struct {
	Text  string `json:"text" yaml:"text" toml:"text"`
	Glyph string `json:"glyph" yaml:"glyph" toml:"glyph"`
}

// Request builds a StatusRequest from the template.
func (t StatusTemplate) Request(expiresAt time.Time, origin Origin, silent bool) StatusRequest {
	return StatusRequest{
		Text:      t.Text,
		Glyph:     t.Glyph,
		ExpiresAt: expiresAt,
		Origin:    origin,
		Silent:    silent,
	}
}

// EnvironmentMapping maps an environment identifier (a network name) to
// the status to show while attached to it. It is read-only once the
// engine starts.
type EnvironmentMapping map[string]StatusTemplate

// Lookup returns the template for id. The empty identifier never maps.
func (m EnvironmentMapping) Lookup(id string) (StatusTemplate, bool) {
	if id == "" {
		return StatusTemplate{}, false
	}
	template, ok := m[id]
	return template, ok
}

// Preset is a canned manual status offered to the operator.
type Preset struct {
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Glyph      string         `json:"glyph"`
	Expiration ExpirationSpec `json:"expiration"`
}
