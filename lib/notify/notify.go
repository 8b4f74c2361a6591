// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers fire-and-forget user notifications for
// presenced. Notify never blocks and never reports failure: a
// notification that cannot be shown is logged at debug and dropped.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Notifier shows a message to the user.
type Notifier interface {
	Notify(title, body string)
}

// DefaultTimeout bounds one notify-send invocation.
const DefaultTimeout = 5 * time.Second

// runFunc executes one notification command.
type runFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Desktop runs a notify-send compatible command for each message.
type Desktop struct {
	command string
	appName string
	timeout time.Duration
	logger  *slog.Logger
	run     runFunc

	inFlight sync.WaitGroup
}

// NewDesktop returns a Desktop notifier. An empty command means
// "notify-send".
func NewDesktop(command string, logger *slog.Logger) *Desktop {
	if command == "" {
		command = "notify-send"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{
		command: command,
		appName: "presence",
		timeout: DefaultTimeout,
		logger:  logger.With("component", "notify"),
		run:     runCommand,
	}
}

// Notify starts the command in the background and returns.
func (d *Desktop) Notify(title, body string) {
	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.run(ctx, d.command, "--app-name="+d.appName, title, body); err != nil {
			d.logger.Debug("notification not shown", "title", title, "error", err)
		}
	}()
}

// Wait blocks until every started notification command has exited.
func (d *Desktop) Wait() {
	d.inFlight.Wait()
}

// Log writes notifications to a logger. It is the fallback when
// desktop notifications are disabled.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier that logs at info.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Notify(title, body string) {
	l.logger.Info(title, "body", body)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string) {}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(title, body string) {
	for _, notifier := range m {
		notifier.Notify(title, body)
	}
}
