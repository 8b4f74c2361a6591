// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package menu turns engine state into a status menu and turns the
// operator's choices back into engine commands.
//
// [Build] renders a [presence.Snapshot] and the configured presets as
// a [Menu]: an icon title, read-only header lines, and selectable
// entries carrying a [Command]. The custom-status entry opens a form;
// [ParseForm] converts the submitted [FormResult] into a command or
// recognizes a cancellation. [Apply] sends a command to a [Commander],
// which is either the engine itself or a control socket client.
//
// The package has no UI dependencies. lib/menuui draws it in a
// terminal; any other surface (a tray icon, a web page) can consume the
// same Menu.
package menu
