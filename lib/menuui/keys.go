// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package menuui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the menu key bindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Refresh key.Binding
	Quit    key.Binding

	// Form navigation.
	NextField     key.Binding
	PreviousField key.Binding
	Submit        key.Binding
	Cancel        key.Binding
}

// DefaultKeyMap uses vim-style movement alongside the arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "select"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PreviousField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-tab", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "set status"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// menuHelp and formHelp adapt the key map to help.KeyMap for each
// screen.
type menuHelp struct{ keys KeyMap }

func (h menuHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.keys.Up, h.keys.Down, h.keys.Select, h.keys.Refresh, h.keys.Quit}
}

func (h menuHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

type formHelp struct{ keys KeyMap }

func (h formHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.keys.NextField, h.keys.Submit, h.keys.Cancel}
}

func (h formHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }
