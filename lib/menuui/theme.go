// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package menuui

import "github.com/charmbracelet/lipgloss"

// Theme is the menu color palette, in ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	ErrorForeground  lipgloss.Color
	NoticeForeground lipgloss.Color
}

// DefaultTheme suits a dark 256-color terminal.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	ErrorForeground:  lipgloss.Color("196"), // red
	NoticeForeground: lipgloss.Color("114"), // green
}

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	entry    lipgloss.Style
	selected lipgloss.Style
	disabled lipgloss.Style
	errorMsg lipgloss.Style
	notice   lipgloss.Style
	frame    lipgloss.Style
	label    lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground),
		header:   lipgloss.NewStyle().Foreground(theme.FaintText),
		entry:    lipgloss.NewStyle().Foreground(theme.NormalText),
		selected: lipgloss.NewStyle().Foreground(theme.SelectedForeground).Background(theme.SelectedBackground).Bold(true),
		disabled: lipgloss.NewStyle().Foreground(theme.FaintText).Faint(true),
		errorMsg: lipgloss.NewStyle().Foreground(theme.ErrorForeground),
		notice:   lipgloss.NewStyle().Foreground(theme.NoticeForeground),
		frame:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.BorderColor).Padding(0, 1),
		label:    lipgloss.NewStyle().Foreground(theme.FaintText).Width(12),
	}
}
