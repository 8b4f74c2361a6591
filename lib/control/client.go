// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/presence/lib/codec"
	"github.com/bureau-foundation/presence/presence"
)

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 20 * time.Second
	maxResponseSize     = 1 << 20
)

// ServiceError is a failure reported by presenced (ok=false).
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("presenced error on %q: %s", e.Action, e.Message)
}

// Client talks to a presenced control socket. Each call opens its own
// connection.
type Client struct {
	socketPath string
}

// NewClient returns a client for socketPath. It does not connect.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends action with fields and decodes the response data into
// result, if result is non-nil.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	if _, ok := ctx.Deadline(); !ok {
		conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	}
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

// Snapshot returns the engine state.
func (c *Client) Snapshot(ctx context.Context) (presence.Snapshot, error) {
	var snapshot presence.Snapshot
	err := c.Call(ctx, ActionStatus, nil, &snapshot)
	return snapshot, err
}

// Presets returns the configured manual presets.
func (c *Client) Presets(ctx context.Context) ([]presence.Preset, error) {
	var presets []presence.Preset
	err := c.Call(ctx, ActionPresets, nil, &presets)
	return presets, err
}

// SetManualStatus asks presenced to pin a manual status.
func (c *Client) SetManualStatus(ctx context.Context, text, glyph string, expiration presence.ExpirationSpec) (presence.Receipt, error) {
	var receipt presence.Receipt
	err := c.Call(ctx, ActionSet, map[string]any{
		"text":    text,
		"glyph":   glyph,
		"expires": expiration.String(),
	}, &receipt)
	return receipt, err
}

// ClearStatus asks presenced to clear the status.
func (c *Client) ClearStatus(ctx context.Context) (presence.Receipt, error) {
	var receipt presence.Receipt
	err := c.Call(ctx, ActionClear, nil, &receipt)
	return receipt, err
}

// ResumeAutomatic asks presenced to return to automatic mode.
func (c *Client) ResumeAutomatic(ctx context.Context) (presence.Receipt, error) {
	var receipt presence.Receipt
	err := c.Call(ctx, ActionResume, nil, &receipt)
	return receipt, err
}
