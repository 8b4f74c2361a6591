// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/presence/presence"
)

// CommandKind says what a menu entry does.
type CommandKind int

const (
	// SetManual pins Text/Glyph until Expiration.
	SetManual CommandKind = iota + 1

	// Clear clears the status and returns to automatic mode.
	Clear

	// Resume returns to automatic mode.
	Resume

	// OpenForm asks the UI to show the custom status form.
	OpenForm
)

func (k CommandKind) String() string {
	switch k {
	case SetManual:
		return "set"
	case Clear:
		return "clear"
	case Resume:
		return "resume"
	case OpenForm:
		return "form"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is an operator action.
type Command struct {
	Kind       CommandKind
	Text       string
	Glyph      string
	Expiration presence.ExpirationSpec
}

// Entry is one menu line. Header entries are informational and have
// no command.
type Entry struct {
	Label   string
	Header  bool
	Enabled bool
	Command Command
}

// Selectable reports whether choosing the entry does anything.
func (e Entry) Selectable() bool {
	return !e.Header && e.Enabled
}

// Menu is the rendered status menu.
type Menu struct {
	// Title is the icon: the confirmed glyph, or a fallback.
	Title   string
	Entries []Entry
}

// Icon picks the menu title glyph. A failed last chain wins over the
// confirmed glyph so the operator notices it.
func Icon(snapshot presence.Snapshot) string {
	switch {
	case snapshot.LastFailure != nil && snapshot.InFlight == nil:
		return WarningIcon
	case snapshot.Glyph() != "":
		return Emoji(snapshot.Glyph())
	case snapshot.InFlight != nil:
		return PendingIcon
	default:
		return IdleIcon
	}
}

// Build renders the menu for snapshot.
func Build(snapshot presence.Snapshot, presets []presence.Preset) Menu {
	menu := Menu{Title: Icon(snapshot)}
	header := func(label string) {
		menu.Entries = append(menu.Entries, Entry{Label: label, Header: true})
	}

	header(statusLine(snapshot))
	header(modeLine(snapshot))
	if snapshot.InFlight != nil {
		header(inFlightLine(*snapshot.InFlight))
	}
	if snapshot.LastFailure != nil {
		header(fmt.Sprintf("Last update failed: %s", snapshot.LastFailure.Error))
	}

	for _, preset := range presets {
		label := preset.Title
		if preset.Glyph != "" {
			label = Emoji(preset.Glyph) + " " + label
		}
		menu.Entries = append(menu.Entries, Entry{
			Label:   fmt.Sprintf("%s (%s)", label, describeExpiration(preset.Expiration)),
			Enabled: true,
			Command: Command{
				Kind:       SetManual,
				Text:       preset.Text,
				Glyph:      preset.Glyph,
				Expiration: preset.Expiration,
			},
		})
	}

	menu.Entries = append(menu.Entries,
		Entry{Label: "Custom status…", Enabled: true, Command: Command{Kind: OpenForm}},
		Entry{Label: "Clear status", Enabled: snapshot.Mode == presence.ModeManual || showsStatus(snapshot), Command: Command{Kind: Clear}},
		Entry{Label: "Resume automatic", Enabled: snapshot.Mode == presence.ModeManual, Command: Command{Kind: Resume}},
	)
	return menu
}

// showsStatus reports whether the confirmed status has text or glyph.
func showsStatus(snapshot presence.Snapshot) bool {
	return snapshot.Status != nil && (snapshot.Status.Text != "" || snapshot.Status.Glyph != "")
}

func statusLine(snapshot presence.Snapshot) string {
	status := snapshot.Status
	if status == nil {
		return "Status: unknown"
	}
	if !showsStatus(snapshot) {
		return "Status: (cleared)"
	}
	line := "Status: " + strings.TrimSpace(Emoji(status.Glyph)+" "+status.Text)
	if !status.ExpiresAt.IsZero() {
		line += " until " + status.ExpiresAt.Local().Format("15:04")
	}
	return line
}

func modeLine(snapshot presence.Snapshot) string {
	network := "offline"
	if snapshot.Connected {
		network = snapshot.Environment
		if !snapshot.Mapped {
			network += " (unmapped)"
		}
	}
	return fmt.Sprintf("Mode: %s · Network: %s", snapshot.Mode, network)
}

func inFlightLine(chain presence.ChainInfo) string {
	if chain.RetryPending {
		return fmt.Sprintf("Updating… retrying (attempt %d)", chain.Attempt+1)
	}
	return "Updating…"
}

func describeExpiration(spec presence.ExpirationSpec) string {
	switch spec.Kind {
	case presence.ExpireEndOfDay:
		return "until end of day"
	case presence.ExpireNever:
		return "no expiry"
	default:
		if spec.After%time.Hour == 0 {
			return fmt.Sprintf("%dh", int(spec.After/time.Hour))
		}
		return spec.String()
	}
}

// FormRequest describes the custom status form. Fields are prefilled
// values.
type FormRequest struct {
	Title      string
	Text       string
	Glyph      string
	Expiration string
}

// NewFormRequest prefills the form from the confirmed status.
func NewFormRequest(snapshot presence.Snapshot) FormRequest {
	request := FormRequest{
		Title:      "Set a custom status",
		Expiration: presence.EndOfDaySpec().String(),
	}
	if snapshot.Status != nil && snapshot.Status.Origin == presence.OriginManual {
		request.Text = snapshot.Status.Text
		request.Glyph = snapshot.Status.Glyph
	}
	return request
}

// FormResult is what the UI returns from the form.
type FormResult struct {
	Cancelled  bool
	Text       string
	Glyph      string
	Expiration string
}

// ParseForm converts a submitted form into a SetManual command. A
// cancelled form returns ok=false and no error. An empty expiration
// means end of day.
func ParseForm(result FormResult) (command Command, ok bool, err error) {
	if result.Cancelled {
		return Command{}, false, nil
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return Command{}, false, fmt.Errorf("status text is required")
	}
	glyph := normalizeGlyph(result.Glyph)

	expiration := presence.EndOfDaySpec()
	if strings.TrimSpace(result.Expiration) != "" {
		expiration, err = presence.ParseExpirationSpec(result.Expiration)
		if err != nil {
			return Command{}, false, err
		}
	}
	return Command{Kind: SetManual, Text: text, Glyph: glyph, Expiration: expiration}, true, nil
}

// normalizeGlyph wraps a bare shortcode name in colons: "palm_tree"
// becomes ":palm_tree:". Literal emoji pass through.
func normalizeGlyph(glyph string) string {
	glyph = strings.TrimSpace(glyph)
	if glyph == "" || strings.HasPrefix(glyph, ":") {
		return glyph
	}
	for _, r := range glyph {
		if !(r == '_' || r == '-' || r == '+' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return glyph
		}
	}
	return ":" + glyph + ":"
}

// Commander executes operator commands. *presence.Engine and
// *control.Client both implement it.
type Commander interface {
	SetManualStatus(ctx context.Context, text, glyph string, expiration presence.ExpirationSpec) (presence.Receipt, error)
	ClearStatus(ctx context.Context) (presence.Receipt, error)
	ResumeAutomatic(ctx context.Context) (presence.Receipt, error)
}

// ErrFormCommand is returned by Apply for OpenForm, which the UI must
// handle itself.
var ErrFormCommand = errors.New("menu: the form command is handled by the UI")

// Apply sends command to commander.
func Apply(ctx context.Context, commander Commander, command Command) (presence.Receipt, error) {
	switch command.Kind {
	case SetManual:
		return commander.SetManualStatus(ctx, command.Text, command.Glyph, command.Expiration)
	case Clear:
		return commander.ClearStatus(ctx)
	case Resume:
		return commander.ResumeAutomatic(ctx)
	case OpenForm:
		return presence.Receipt{}, ErrFormCommand
	default:
		return presence.Receipt{}, fmt.Errorf("menu: unknown command %v", command.Kind)
	}
}
