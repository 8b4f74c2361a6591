// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package menu

import "strings"

// Icons used when no confirmed glyph applies.
const (
	IdleIcon    = "○"
	WarningIcon = "⚠"
	PendingIcon = "…"
)

// shortcodes maps Slack emoji shortcodes to their characters. Slack
// accepts any shortcode; only the common status ones render locally.
var shortcodes = map[string]string{
	"house":                    "🏠",
	"house_with_garden":        "🏡",
	"office":                   "🏢",
	"coffee":                   "☕",
	"fork_and_knife":           "🍴",
	"hamburger":                "🍔",
	"spiral_calendar_pad":      "🗓️",
	"calendar":                 "📆",
	"headphones":               "🎧",
	"palm_tree":                "🌴",
	"face_with_thermometer":    "🤒",
	"train":                    "🚆",
	"bus":                      "🚌",
	"car":                      "🚗",
	"airplane":                 "✈️",
	"computer":                 "💻",
	"no_entry":                 "⛔",
	"zzz":                      "💤",
	"speech_balloon":           "💬",
	"studio_microphone":        "🎙️",
	"red_circle":               "🔴",
	"large_green_circle":       "🟢",
	"video_camera":             "📹",
	"books":                    "📚",
	"hospital":                 "🏥",
	"baby":                     "👶",
	"walking":                  "🚶",
	"tent":                     "⛺",
	"cityscape":                "🏙️",
	"globe_with_meridians":     "🌐",
	"hotel":                    "🏨",
	"school":                   "🏫",
	"bento":                    "🍱",
	"sunny":                    "☀️",
	"umbrella_with_rain_drops": "☔",
}

// Emoji renders a glyph for display. ":palm_tree:" becomes "🌴";
// unknown shortcodes and literal characters are returned unchanged.
func Emoji(glyph string) string {
	name, ok := strings.CutPrefix(glyph, ":")
	if !ok {
		return glyph
	}
	name, ok = strings.CutSuffix(name, ":")
	if !ok {
		return glyph
	}
	// Skin tone modifiers ("::skin-tone-2") are dropped.
	if base, _, found := strings.Cut(name, "::"); found {
		name = base
	}
	if emoji, known := shortcodes[name]; known {
		return emoji
	}
	return glyph
}
