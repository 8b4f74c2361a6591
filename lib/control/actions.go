// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/bureau-foundation/presence/lib/codec"
	"github.com/bureau-foundation/presence/presence"
)

// Action names.
const (
	ActionStatus  = "status"
	ActionPresets = "presets"
	ActionSet     = "set"
	ActionClear   = "clear"
	ActionResume  = "resume"
)

// Backend is what the control actions drive. *presence.Engine
// implements it.
type Backend interface {
	SetManualStatus(ctx context.Context, text, glyph string, expiration presence.ExpirationSpec) (presence.Receipt, error)
	ClearStatus(ctx context.Context) (presence.Receipt, error)
	ResumeAutomatic(ctx context.Context) (presence.Receipt, error)
	Snapshot(ctx context.Context) (presence.Snapshot, error)
}

// SetRequest is the "set" action payload.
type SetRequest struct {
	Text  string `json:"text"`
	Glyph string `json:"glyph"`

	// Expires is an expiration spec: minutes, a duration, end_of_day,
	// or never. Empty means end_of_day.
	Expires string `json:"expires"`
}

// Register installs the presence actions on server.
func Register(server *Server, backend Backend, presets []presence.Preset) {
	server.Handle(ActionStatus, func(ctx context.Context, _ []byte) (any, error) {
		return backend.Snapshot(ctx)
	})

	server.Handle(ActionPresets, func(context.Context, []byte) (any, error) {
		if presets == nil {
			return []presence.Preset{}, nil
		}
		return presets, nil
	})

	server.Handle(ActionSet, func(ctx context.Context, raw []byte) (any, error) {
		var request SetRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid set request: %w", err)
		}
		text := strings.TrimSpace(request.Text)
		if text == "" {
			return nil, fmt.Errorf("status text is required")
		}
		expires := request.Expires
		if expires == "" {
			expires = "end_of_day"
		}
		expiration, err := presence.ParseExpirationSpec(expires)
		if err != nil {
			return nil, err
		}
		return backend.SetManualStatus(ctx, text, strings.TrimSpace(request.Glyph), expiration)
	})

	server.Handle(ActionClear, func(ctx context.Context, _ []byte) (any, error) {
		return backend.ClearStatus(ctx)
	})

	server.Handle(ActionResume, func(ctx context.Context, _ []byte) (any, error) {
		return backend.ResumeAutomatic(ctx)
	})
}
