// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netwatch

import (
	"bufio"
	"context"
	"strings"
)

// Observation is one reading of the network identity.
type Observation struct {
	// Network is the network name. Empty when not connected.
	Network   string
	Connected bool
}

// Disconnected is the observation for "no connectivity".
var Disconnected = Observation{}

// Source watches the network until ctx is cancelled. Run returns nil on
// cancellation and an error only if watching cannot start or continue.
type Source interface {
	Run(ctx context.Context, emit func(Observation)) error
}

// parseNetwork turns command output or file content into an
// observation: the first non-blank line, trimmed.
func parseNetwork(output string) Observation {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return Observation{Network: line, Connected: true}
		}
	}
	return Disconnected
}

// changeFilter forwards an observation only when it differs from the
// previous one. The first observation always passes.
type changeFilter struct {
	emit    func(Observation)
	last    Observation
	started bool
}

func (f *changeFilter) offer(observation Observation) {
	if f.started && observation == f.last {
		return
	}
	f.started = true
	f.last = observation
	f.emit(observation)
}
