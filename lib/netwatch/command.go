// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
)

// maxCommandTime bounds one sample when the poll interval is longer.
const maxCommandTime = 10 * time.Second

// CommandSource polls a command for the network name.
type CommandSource struct {
	command  []string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	// run executes the command and returns its stdout.
	run func(ctx context.Context, command []string) (string, error)
}

// NewCommandSource returns a source that runs command every interval.
// A nil clock means the real clock.
func NewCommandSource(command []string, interval time.Duration, clk clock.Clock, logger *slog.Logger) (*CommandSource, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("netwatch: empty command")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("netwatch: poll interval must be positive, got %s", interval)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{
		command:  command,
		interval: interval,
		clock:    clk,
		logger:   logger.With("component", "netwatch", "source", "command"),
		run:      runCommand,
	}, nil
}

func runCommand(ctx context.Context, command []string) (string, error) {
	output, err := exec.CommandContext(ctx, command[0], command[1:]...).Output()
	return string(output), err
}

// Run samples immediately, then on every tick.
func (s *CommandSource) Run(ctx context.Context, emit func(Observation)) error {
	filter := &changeFilter{emit: emit}
	filter.offer(s.sample(ctx))

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			filter.offer(s.sample(ctx))
		}
	}
}

func (s *CommandSource) sample(ctx context.Context) Observation {
	timeout := min(s.interval, maxCommandTime)
	sampleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := s.run(sampleCtx, s.command)
	if err != nil {
		// iwgetid exits non-zero when not associated.
		s.logger.Debug("network command failed", "command", s.command[0], "error", err)
		return Disconnected
	}
	return parseNetwork(output)
}
