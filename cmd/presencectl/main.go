// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// presencectl controls a running presenced through its control socket,
// and manages the Slack token presenced reads at startup.
//
// Status commands (status, set, preset, clear, resume, menu) talk to
// the daemon. Token commands (keygen, seal-token, store-token,
// forget-token) work locally and never contact the daemon.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/control"
	"github.com/bureau-foundation/presence/lib/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("presencectl")
		return
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	return newApp(stdout).root().Execute(args)
}

// app carries state shared by every subcommand.
type app struct {
	stdout io.Writer

	// Connection flags, bound into each daemon command's flag set.
	socketPath string
	configPath string
	timeout    time.Duration

	// now is replaced in tests.
	now func() time.Time
}

func newApp(stdout io.Writer) *app {
	return &app{stdout: stdout, now: time.Now}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "presencectl",
		Description: "presencectl: control presenced and manage its Slack token.",
		Subcommands: []*cli.Command{
			a.statusCommand(),
			a.setCommand(),
			a.presetCommand(),
			a.clearCommand(),
			a.resumeCommand(),
			a.menuCommand(),
			a.keygenCommand(),
			a.sealTokenCommand(),
			a.storeTokenCommand(),
			a.forgetTokenCommand(),
		},
	}
}

// addConnectionFlags binds the flags that locate the daemon.
func (a *app) addConnectionFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&a.socketPath, "socket", "", "control socket path (default: from --config, else "+config.DefaultSocketPath+")")
	flagSet.StringVar(&a.configPath, "config", "", "presenced config file to read the socket path from (default: $"+config.EnvVar+")")
	flagSet.DurationVar(&a.timeout, "timeout", 10*time.Second, "give up on the daemon after this long")
}

// resolveSocket picks the socket: --socket, then the socket named by
// the config file (--config or PRESENCE_CONFIG), then the default.
func (a *app) resolveSocket() (string, error) {
	if a.socketPath != "" {
		return config.ExpandPath(a.socketPath), nil
	}
	configPath := a.configPath
	if configPath == "" {
		configPath = os.Getenv(config.EnvVar)
	}
	if configPath != "" {
		cfg, err := config.LoadFile(config.ExpandPath(configPath))
		if err != nil {
			return "", err
		}
		return cfg.Control.Socket, nil
	}
	return config.ExpandPath(config.DefaultSocketPath), nil
}

func (a *app) client() (*control.Client, error) {
	socketPath, err := a.resolveSocket()
	if err != nil {
		return nil, err
	}
	return control.NewClient(socketPath), nil
}
