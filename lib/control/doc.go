// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the command surface of presenced: a unix socket
// carrying one CBOR request and one CBOR response per connection.
//
// Every request is a map with an "action" field. [Server] routes it to
// the handler registered for that action and replies with a [Response]
// envelope: {ok: true, data: ...} or {ok: false, error: "..."}.
// [Register] installs the presence actions:
//
//	status   engine snapshot
//	presets  configured manual presets
//	set      manual status {text, glyph, expires}
//	clear    clear the status and return to automatic mode
//	resume   return to automatic mode
//
// [Client] is the other end, used by presencectl and the terminal menu.
// It implements the same command methods as the engine, so the menu
// code runs unchanged against either.
package control
