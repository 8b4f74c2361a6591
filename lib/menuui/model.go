// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package menuui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/presence/lib/menu"
	"github.com/bureau-foundation/presence/presence"
)

// Backend is what the menu talks to. *control.Client implements it.
type Backend interface {
	menu.Commander
	Snapshot(ctx context.Context) (presence.Snapshot, error)
	Presets(ctx context.Context) ([]presence.Preset, error)
}

const (
	// pollInterval is how often the snapshot is refreshed.
	pollInterval = 2 * time.Second

	// callTimeout bounds one backend call.
	callTimeout = 5 * time.Second
)

// Form field indices.
const (
	fieldText = iota
	fieldGlyph
	fieldExpiration
	fieldCount
)

type (
	stateMsg struct {
		snapshot presence.Snapshot
		presets  []presence.Preset
		err      error
	}
	appliedMsg struct {
		command menu.Command
		receipt presence.Receipt
		err     error
	}
	pollMsg time.Time
)

// Model is the bubbletea model for the status menu.
type Model struct {
	backend Backend
	keys    KeyMap
	styles  styles
	help    help.Model

	snapshot presence.Snapshot
	presets  []presence.Preset
	menu     menu.Menu
	loaded   bool

	// cursor indexes menu.Entries and always rests on a selectable
	// entry when one exists.
	cursor int

	formOpen  bool
	formTitle string
	fields    [fieldCount]textinput.Model
	focus     int

	notice  string
	lastErr error
}

// New returns a model over backend.
func New(backend Backend) Model {
	model := Model{
		backend: backend,
		keys:    DefaultKeyMap,
		styles:  newStyles(DefaultTheme),
		help:    help.New(),
	}
	placeholders := [fieldCount]string{"What's your status?", ":palm_tree:", "end_of_day, 30, 1h30m, never"}
	for i := range model.fields {
		input := textinput.New()
		input.Placeholder = placeholders[i]
		input.Prompt = ""
		input.CharLimit = 100
		model.fields[i] = input
	}
	model.rebuild()
	return model
}

// Run shows the menu until the operator quits or ctx is cancelled.
func Run(ctx context.Context, backend Backend) error {
	program := tea.NewProgram(New(backend), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchState, m.schedulePoll())
}

func (m Model) fetchState() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	snapshot, err := m.backend.Snapshot(ctx)
	if err != nil {
		return stateMsg{err: err}
	}
	presets, err := m.backend.Presets(ctx)
	return stateMsg{snapshot: snapshot, presets: presets, err: err}
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m Model) apply(command menu.Command) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		receipt, err := menu.Apply(ctx, backend, command)
		return appliedMsg{command: command, receipt: receipt, err: err}
	}
}

func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case stateMsg:
		if message.err != nil {
			m.lastErr = message.err
			return m, nil
		}
		m.lastErr = nil
		m.snapshot = message.snapshot
		m.presets = message.presets
		m.loaded = true
		m.rebuild()
		return m, nil

	case pollMsg:
		return m, tea.Batch(m.fetchState, m.schedulePoll())

	case appliedMsg:
		if message.err != nil {
			m.lastErr = message.err
			m.notice = ""
			return m, nil
		}
		m.lastErr = nil
		m.notice = describeReceipt(message.command, message.receipt)
		return m, m.fetchState

	case tea.WindowSizeMsg:
		m.help.Width = message.Width
		return m, nil

	case tea.KeyMsg:
		if m.formOpen {
			return m.updateForm(message)
		}
		return m.updateMenu(message)
	}
	return m, nil
}

func (m Model) updateMenu(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(message, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(message, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(message, m.keys.Refresh):
		return m, m.fetchState
	case key.Matches(message, m.keys.Select):
		entry, ok := m.selected()
		if !ok {
			return m, nil
		}
		if entry.Command.Kind == menu.OpenForm {
			cmd := m.openForm()
			return m, cmd
		}
		m.notice = "Sending…"
		return m, m.apply(entry.Command)
	}
	return m, nil
}

func (m Model) updateForm(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Cancel):
		return m.finishForm(menu.FormResult{Cancelled: true})
	case key.Matches(message, m.keys.Submit):
		return m.finishForm(m.formResult())
	case key.Matches(message, m.keys.NextField):
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case key.Matches(message, m.keys.PreviousField):
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(message)
	return m, cmd
}

// finishForm closes the form on cancel or a valid submission. An
// invalid submission keeps it open with the error shown.
func (m Model) finishForm(result menu.FormResult) (tea.Model, tea.Cmd) {
	command, ok, err := menu.ParseForm(result)
	if err != nil {
		m.lastErr = err
		return m, nil
	}
	m.closeForm()
	m.lastErr = nil
	if !ok {
		m.notice = "Cancelled"
		return m, nil
	}
	m.notice = "Sending…"
	return m, m.apply(command)
}

func (m *Model) openForm() tea.Cmd {
	request := menu.NewFormRequest(m.snapshot)
	m.formOpen = true
	m.formTitle = request.Title
	m.fields[fieldText].SetValue(request.Text)
	m.fields[fieldGlyph].SetValue(request.Glyph)
	m.fields[fieldExpiration].SetValue(request.Expiration)
	m.lastErr = nil
	return m.focusField(fieldText)
}

func (m *Model) closeForm() {
	m.formOpen = false
	for i := range m.fields {
		m.fields[i].Blur()
	}
}

func (m *Model) focusField(index int) tea.Cmd {
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.focus = index
	return m.fields[index].Focus()
}

func (m Model) formResult() menu.FormResult {
	return menu.FormResult{
		Text:       m.fields[fieldText].Value(),
		Glyph:      m.fields[fieldGlyph].Value(),
		Expiration: m.fields[fieldExpiration].Value(),
	}
}

// rebuild re-renders the menu and keeps the cursor on a selectable
// entry.
func (m *Model) rebuild() {
	m.menu = menu.Build(m.snapshot, m.presets)
	if m.cursor >= len(m.menu.Entries) {
		m.cursor = len(m.menu.Entries) - 1
	}
	if m.cursor < 0 || !m.menu.Entries[m.cursor].Selectable() {
		m.cursor = -1
		m.moveCursor(1)
	}
}

// moveCursor steps to the next selectable entry in direction, staying
// put at either end.
func (m *Model) moveCursor(direction int) {
	for index := m.cursor + direction; index >= 0 && index < len(m.menu.Entries); index += direction {
		if m.menu.Entries[index].Selectable() {
			m.cursor = index
			return
		}
	}
}

func (m Model) selected() (menu.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.menu.Entries) {
		return menu.Entry{}, false
	}
	entry := m.menu.Entries[m.cursor]
	return entry, entry.Selectable()
}

func describeReceipt(command menu.Command, receipt presence.Receipt) string {
	if !receipt.Dispatched {
		if receipt.Reason != "" {
			return "Nothing sent: " + receipt.Reason
		}
		return "Nothing sent"
	}
	switch command.Kind {
	case menu.SetManual:
		return fmt.Sprintf("Setting %q…", strings.TrimSpace(menu.Emoji(command.Glyph)+" "+command.Text))
	case menu.Clear:
		return "Clearing status…"
	case menu.Resume:
		return "Resuming automatic status…"
	}
	return "Sent"
}

func (m Model) View() string {
	var body strings.Builder
	body.WriteString(m.styles.title.Render(m.menu.Title + "  presence"))
	body.WriteString("\n\n")

	if m.formOpen {
		body.WriteString(m.styles.header.Render(m.formTitle))
		body.WriteString("\n\n")
		labels := [fieldCount]string{"Status", "Emoji", "Clear after"}
		for i := range m.fields {
			body.WriteString(m.styles.label.Render(labels[i]))
			body.WriteString(m.fields[i].View())
			body.WriteString("\n")
		}
	} else if !m.loaded && m.lastErr == nil {
		body.WriteString(m.styles.header.Render("Connecting to presenced…"))
		body.WriteString("\n")
	} else {
		for index, entry := range m.menu.Entries {
			body.WriteString(m.renderEntry(index, entry))
			body.WriteString("\n")
		}
	}

	body.WriteString("\n")
	switch {
	case m.lastErr != nil:
		body.WriteString(m.styles.errorMsg.Render("error: " + m.lastErr.Error()))
		body.WriteString("\n")
	case m.notice != "":
		body.WriteString(m.styles.notice.Render(m.notice))
		body.WriteString("\n")
	}

	if m.formOpen {
		body.WriteString(m.help.View(formHelp{m.keys}))
	} else {
		body.WriteString(m.help.View(menuHelp{m.keys}))
	}
	return m.styles.frame.Render(body.String())
}

func (m Model) renderEntry(index int, entry menu.Entry) string {
	switch {
	case entry.Header:
		return m.styles.header.Render(entry.Label)
	case !entry.Enabled:
		return m.styles.disabled.Render("  " + entry.Label)
	case index == m.cursor:
		return m.styles.selected.Render("› " + entry.Label)
	default:
		return m.styles.entry.Render("  " + entry.Label)
	}
}
