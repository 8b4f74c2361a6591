// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package menuui draws the status menu in a terminal.
//
// The [Model] is a bubbletea model over a [Backend], normally a
// control socket client talking to a running presenced. It polls the
// engine snapshot, renders it through lib/menu, and sends the chosen
// command back. The custom status entry opens a three-field form
// (text, glyph, expiration). Commands are acknowledged when presenced
// accepts them; the confirmed status shows up on a later poll.
package menuui
