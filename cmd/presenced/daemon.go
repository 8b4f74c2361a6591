// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/control"
	"github.com/bureau-foundation/presence/lib/metrics"
	"github.com/bureau-foundation/presence/lib/netwatch"
	"github.com/bureau-foundation/presence/lib/notify"
	"github.com/bureau-foundation/presence/lib/secret"
	"github.com/bureau-foundation/presence/presence"
	"github.com/bureau-foundation/presence/slack"
)

// daemon holds the wired components of one presenced process.
type daemon struct {
	logger  *slog.Logger
	engine  *presence.Engine
	control *control.Server
	source  netwatch.Source
	metrics *metrics.Metrics

	socketPath    string
	metricsListen string

	// desktop is nil when notifications go to the log.
	desktop *notify.Desktop
}

// newDaemon builds every component from cfg. token may be nil, in
// which case the engine runs and every update is rejected.
func newDaemon(cfg *config.Config, token *secret.Buffer, logger *slog.Logger) (*daemon, error) {
	slackClient, err := slack.NewClient(slack.ClientConfig{
		APIURL:            cfg.Slack.APIURL,
		HTTPClient:        &http.Client{Timeout: cfg.Slack.Timeout.Std()},
		RequestsPerMinute: cfg.Slack.RequestsPerMinute,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	d := &daemon{
		logger:        logger,
		socketPath:    cfg.Control.Socket,
		metricsListen: cfg.Metrics.Listen,
	}

	var notifier notify.Notifier = notify.NewLog(logger)
	if cfg.Notifications.Enabled {
		d.desktop = notify.NewDesktop(cfg.Notifications.Command, logger)
		notifier = notify.Multi{d.desktop, notifier}
	}

	d.engine = presence.New(cfg.Engine(), &slack.Updater{Client: slackClient, Token: token}, presence.Options{
		Logger:   logger,
		Notifier: notifier,
		Observer: func(outcome presence.Outcome) { d.metrics.Observe(outcome) },
	})
	d.metrics = metrics.New(d.engine.Snapshot)

	d.control = control.NewServer(cfg.Control.Socket, logger)
	control.Register(d.control, d.engine, cfg.ManualPresets())

	switch cfg.Watcher.Source {
	case config.WatcherFile:
		d.source = netwatch.NewFileSource(cfg.Watcher.File, logger)
	case config.WatcherCommand:
		source, err := netwatch.NewCommandSource(cfg.Watcher.Command, cfg.Watcher.PollInterval.Std(), clock.Real(), logger)
		if err != nil {
			return nil, err
		}
		d.source = source
	default:
		return nil, fmt.Errorf("unknown watcher source %q", cfg.Watcher.Source)
	}

	return d, nil
}

// run starts every component and blocks until ctx is cancelled or one
// of them fails, then stops the rest.
func (d *daemon) run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return d.engine.Run(groupCtx)
	})
	group.Go(func() error {
		return d.control.Serve(groupCtx)
	})
	group.Go(func() error {
		return d.source.Run(groupCtx, func(observation netwatch.Observation) {
			d.logger.Debug("network observed",
				"network", observation.Network, "connected", observation.Connected)
			d.engine.EnvironmentChanged(observation.Network, observation.Connected)
		})
	})
	if d.metricsListen != "" {
		group.Go(func() error {
			return metrics.Serve(groupCtx, d.metricsListen, d.metrics.Handler(), d.logger)
		})
	}

	err := group.Wait()
	if d.desktop != nil {
		d.desktop.Wait()
	}
	if err != nil {
		return err
	}
	d.logger.Info("presenced stopped")
	return nil
}
