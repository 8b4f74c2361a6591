// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slack

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/presence/lib/secret"
	"github.com/bureau-foundation/presence/presence"
)

// Updater adapts a Client and a token to presence.Updater. A nil Token
// is allowed: every update is then rejected with ErrMissingToken.
type Updater struct {
	Client *Client
	Token  *secret.Buffer
}

// UpdateStatus sets the status. Permanent failures wrap
// presence.ErrRejected as well as the underlying error.
func (u *Updater) UpdateStatus(ctx context.Context, request presence.StatusRequest) error {
	err := u.Client.SetStatus(ctx, u.Token, ProfileStatus{
		Text:       request.Text,
		Emoji:      request.Glyph,
		Expiration: request.ExpirationUnix(),
	})
	if err == nil {
		return nil
	}
	if IsTransient(err) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", presence.ErrRejected, err)
}
