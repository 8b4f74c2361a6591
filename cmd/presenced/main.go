// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// presenced keeps a Slack profile status in step with the network the
// machine is attached to.
//
// In automatic mode it watches the current network name (from a polled
// command such as iwgetid, or a file another tool rewrites), debounces
// changes, and sets the status configured for that network, refreshing
// it before the server-side expiration lapses. An operator can pin a
// manual status through the control socket (presencectl, or the menu
// in "presencectl menu"), clear it, or hand control back to automatic
// mode. Failed updates are retried with exponential backoff.
//
// Configuration comes from the file named by --config or by the
// PRESENCE_CONFIG environment variable. YAML, TOML, and JSON (with
// comments) are accepted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/credential"
	"github.com/bureau-foundation/presence/lib/logging"
	"github.com/bureau-foundation/presence/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("presenced", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("presenced")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level)
	slog.SetDefault(logger)

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	// A missing token is not fatal: the engine starts, every update is
	// rejected, and the operator sees the failure in the menu.
	token, err := credential.Load(cfg.Credential)
	if err != nil {
		logger.Warn("no slack token available, status updates will fail",
			"source", cfg.Credential.Source, "error", err)
		token = nil
	}
	if token != nil {
		defer token.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(cfg, token, logger)
	if err != nil {
		return err
	}

	logger.Info("presenced starting",
		"version", version.Info(),
		"socket", cfg.Control.Socket,
		"watcher", cfg.Watcher.Source,
		"networks", len(cfg.Automatic.Networks),
	)
	return daemon.run(ctx)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `presenced: keep a Slack status in step with the current network.

Usage:
  presenced [flags]

The config file is read from --config, or from $%s when the flag
is not given. Send SIGINT or SIGTERM to stop.

Examples:
  # Run with an explicit config
  presenced --config ~/.config/presence/presence.yaml

  # Verbose logging
  PRESENCE_CONFIG=~/.config/presence/presence.toml presenced --log-level debug

Flags:
`, config.EnvVar)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
