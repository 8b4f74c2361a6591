// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExpirationKind selects how an ExpirationSpec resolves.
type ExpirationKind int

const (
	// ExpireAfterDuration expires a fixed duration after dispatch.
	ExpireAfterDuration ExpirationKind = iota

	// ExpireEndOfDay expires at 23:59:59 of the local day of dispatch.
	ExpireEndOfDay

	// ExpireNever keeps the status until it is replaced.
	ExpireNever
)

// ExpirationSpec is a manual status expiration as the operator states
// it. It is resolved to a timestamp at dispatch time, so "end of day"
// means the end of the day the dispatch happens on.
type ExpirationSpec struct {
	Kind  ExpirationKind
	After time.Duration
}

// ExpireAfter returns a spec that expires the given number of minutes
// after dispatch.
func ExpireAfter(minutes int) ExpirationSpec {
	return ExpirationSpec{Kind: ExpireAfterDuration, After: time.Duration(minutes) * time.Minute}
}

// EndOfDaySpec returns a spec that expires at the end of the local day.
func EndOfDaySpec() ExpirationSpec {
	return ExpirationSpec{Kind: ExpireEndOfDay}
}

// NeverSpec returns a spec that never expires.
func NeverSpec() ExpirationSpec {
	return ExpirationSpec{Kind: ExpireNever}
}

// ParseExpirationSpec accepts a bare number of minutes ("90"), a Go
// duration ("90m", "1h30m"), "end_of_day" or "eod", and "never".
func ParseExpirationSpec(text string) (ExpirationSpec, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	switch normalized {
	case "end_of_day", "end-of-day", "eod":
		return EndOfDaySpec(), nil
	case "never":
		return NeverSpec(), nil
	case "":
		return ExpirationSpec{}, fmt.Errorf("empty expiration")
	}

	if minutes, err := strconv.Atoi(normalized); err == nil {
		if minutes <= 0 {
			return ExpirationSpec{}, fmt.Errorf("expiration %q: minutes must be positive", text)
		}
		return ExpireAfter(minutes), nil
	}

	duration, err := time.ParseDuration(normalized)
	if err != nil {
		return ExpirationSpec{}, fmt.Errorf("expiration %q: want minutes, a duration, end_of_day, or never", text)
	}
	if duration < time.Minute {
		return ExpirationSpec{}, fmt.Errorf("expiration %q: must be at least one minute", text)
	}
	return ExpirationSpec{Kind: ExpireAfterDuration, After: duration}, nil
}

// Validate rejects a spec that would expire at or before dispatch. The
// zero ExpirationSpec is invalid.
func (s ExpirationSpec) Validate() error {
	switch s.Kind {
	case ExpireEndOfDay, ExpireNever:
		return nil
	case ExpireAfterDuration:
		if s.After < time.Minute {
			return fmt.Errorf("expiration %s: must be at least one minute", s.After)
		}
		return nil
	default:
		return fmt.Errorf("unknown expiration kind %d", s.Kind)
	}
}

// Resolve returns the expiration timestamp for a dispatch at now. The
// zero time means never.
func (s ExpirationSpec) Resolve(now time.Time) time.Time {
	switch s.Kind {
	case ExpireEndOfDay:
		return EndOfDay(now)
	case ExpireNever:
		return time.Time{}
	default:
		return now.Add(s.After)
	}
}

func (s ExpirationSpec) String() string {
	switch s.Kind {
	case ExpireEndOfDay:
		return "end_of_day"
	case ExpireNever:
		return "never"
	default:
		if s.After%time.Minute == 0 {
			return strconv.FormatInt(int64(s.After/time.Minute), 10) + "m"
		}
		return s.After.String()
	}
}

// MarshalText encodes s in the form ParseExpirationSpec reads.
func (s ExpirationSpec) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a spec with ParseExpirationSpec.
func (s *ExpirationSpec) UnmarshalText(text []byte) error {
	parsed, err := ParseExpirationSpec(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EndOfDay returns 23:59:59 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, t.Location())
}
