// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"testing"
	"time"
)

func TestFingerprintIgnoresExpirationAndOrigin(t *testing.T) {
	base := StatusRequest{Text: "Working from home", Glyph: ":house_with_garden:"}
	later := base
	later.ExpiresAt = time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)
	later.Origin = OriginManual
	later.Silent = true

	if base.Fingerprint() != later.Fingerprint() {
		t.Errorf("fingerprint changed with expiration/origin: %s vs %s", base.Fingerprint(), later.Fingerprint())
	}

	other := StatusRequest{Text: "Working from home", Glyph: ":office:"}
	if base.Fingerprint() == other.Fingerprint() {
		t.Error("different glyphs produced the same fingerprint")
	}

	// The separator keeps text and glyph from sliding into each other.
	left := StatusRequest{Text: "ab", Glyph: "c"}
	right := StatusRequest{Text: "a", Glyph: "bc"}
	if left.Fingerprint() == right.Fingerprint() {
		t.Error("text/glyph boundary not part of the fingerprint")
	}
}

func TestExpirationUnix(t *testing.T) {
	request := StatusRequest{Text: "Lunch"}
	if !request.NeverExpires() || request.ExpirationUnix() != 0 {
		t.Fatalf("zero ExpiresAt: NeverExpires=%v ExpirationUnix=%d", request.NeverExpires(), request.ExpirationUnix())
	}
	request.ExpiresAt = time.Unix(1704100500, 0)
	if request.ExpirationUnix() != 1704100500 {
		t.Errorf("ExpirationUnix = %d, want 1704100500", request.ExpirationUnix())
	}
}

func TestStatusRequestString(t *testing.T) {
	tests := []struct {
		request StatusRequest
		want    string
	}{
		{StatusRequest{}, "(cleared)"},
		{StatusRequest{Text: "Lunch", Glyph: ":fork_and_knife:"}, ":fork_and_knife: Lunch"},
		{StatusRequest{Text: "Focus", ExpiresAt: time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)}, "Focus until 17:30"},
	}
	for _, test := range tests {
		if got := test.request.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestEnvironmentMappingLookup(t *testing.T) {
	mapping := EnvironmentMapping{
		"HomeWifi": {Text: "Working from home", Glyph: ":house_with_garden:"},
	}
	if template, ok := mapping.Lookup("HomeWifi"); !ok || template.Glyph != ":house_with_garden:" {
		t.Errorf("Lookup(HomeWifi) = %+v, %v", template, ok)
	}
	if _, ok := mapping.Lookup("CoffeeShop"); ok {
		t.Error("Lookup of an unmapped network succeeded")
	}
	if _, ok := mapping.Lookup(""); ok {
		t.Error("Lookup of the empty identifier succeeded")
	}
}
