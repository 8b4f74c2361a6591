// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/menu"
	"github.com/bureau-foundation/presence/lib/menuui"
	"github.com/bureau-foundation/presence/presence"
)

// callContext bounds one round of daemon calls by --timeout.
func (a *app) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *app) statusCommand() *cli.Command {
	var outputJSON bool
	return &cli.Command{
		Name:    "status",
		Summary: "Show the daemon's mode, status, and network",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			snapshot, err := client.Snapshot(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				encoder := json.NewEncoder(a.stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(snapshot)
			}
			a.printSnapshot(snapshot)
			return nil
		},
	}
}

// printSnapshot renders the same lines the menu shows in its header,
// followed by the lifetime counters.
func (a *app) printSnapshot(snapshot presence.Snapshot) {
	fmt.Fprintf(a.stdout, "%s presenced\n", menu.Icon(snapshot))
	for _, entry := range menu.Build(snapshot, nil).Entries {
		if entry.Header {
			fmt.Fprintf(a.stdout, "  %s\n", entry.Label)
		}
	}
	counters := snapshot.Counters
	fmt.Fprintf(a.stdout, "  Updates: %d started, %d attempts, %d succeeded, %d failed, %d superseded\n",
		counters.DispatchesStarted, counters.Attempts, counters.Successes,
		counters.TerminalFailures, counters.Superseded)
}

func (a *app) printReceipt(receipt presence.Receipt) {
	if receipt.Dispatched {
		fmt.Fprintf(a.stdout, "Update dispatched (chain %s)\n", receipt.ChainID)
		return
	}
	if receipt.Reason != "" {
		fmt.Fprintf(a.stdout, "Nothing dispatched: %s\n", receipt.Reason)
		return
	}
	fmt.Fprintln(a.stdout, "Nothing dispatched")
}

func (a *app) setCommand() *cli.Command {
	var glyph, expires string
	return &cli.Command{
		Name:    "set",
		Summary: "Pin a manual status",
		Usage:   "presencectl set [flags] TEXT...",
		Description: `Pin a manual status. Automatic updates stop until "presencectl resume"
or "presencectl clear". The manual status also ends on its own when it
expires.

--expires takes minutes ("30"), a duration ("1h30m"), "end_of_day",
or "never".`,
		Examples: []cli.Example{
			{Description: "Lunch for an hour", Command: `presencectl set --glyph :pizza: --expires 60 "At lunch"`},
			{Description: "Until further notice", Command: `presencectl set --glyph :palm_tree: --expires never On vacation`},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			flagSet.StringVar(&glyph, "glyph", "", "status emoji, e.g. :pizza:")
			flagSet.StringVar(&expires, "expires", "end_of_day", "when the status expires")
			return flagSet
		},
		Run: func(args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("status text is required")
			}
			expiration, err := presence.ParseExpirationSpec(expires)
			if err != nil {
				return err
			}
			return a.apply(menu.Command{
				Kind:       menu.SetManual,
				Text:       text,
				Glyph:      glyph,
				Expiration: expiration,
			})
		},
	}
}

func (a *app) presetCommand() *cli.Command {
	return &cli.Command{
		Name:    "preset",
		Summary: "List presets, or pin one by title",
		Usage:   "presencectl preset [flags] [TITLE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("preset", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := a.callContext()
			defer cancel()
			presets, err := client.Presets(ctx)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				writer := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintf(writer, "TITLE\tSTATUS\tEXPIRES\n")
				for _, preset := range presets {
					fmt.Fprintf(writer, "%s\t%s %s\t%s\n",
						preset.Title, menu.Emoji(preset.Glyph), preset.Text, preset.Expiration)
				}
				return writer.Flush()
			}

			title := strings.Join(args, " ")
			for _, preset := range presets {
				if strings.EqualFold(preset.Title, title) {
					return a.apply(menu.Command{
						Kind:       menu.SetManual,
						Text:       preset.Text,
						Glyph:      preset.Glyph,
						Expiration: preset.Expiration,
					})
				}
			}
			return fmt.Errorf("no preset titled %q (run \"presencectl preset\" to list them)", title)
		},
	}
}

func (a *app) clearCommand() *cli.Command {
	return &cli.Command{
		Name:    "clear",
		Summary: "Clear the status and return to automatic mode",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("clear", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return a.apply(menu.Command{Kind: menu.Clear})
		},
	}
}

func (a *app) resumeCommand() *cli.Command {
	return &cli.Command{
		Name:    "resume",
		Summary: "Drop the manual status and resume automatic updates",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resume", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return a.apply(menu.Command{Kind: menu.Resume})
		},
	}
}

// apply sends one command to the daemon and prints the receipt.
func (a *app) apply(command menu.Command) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	ctx, cancel := a.callContext()
	defer cancel()
	receipt, err := menu.Apply(ctx, client, command)
	if err != nil {
		return err
	}
	a.printReceipt(receipt)
	return nil
}

func (a *app) menuCommand() *cli.Command {
	return &cli.Command{
		Name:    "menu",
		Summary: "Open the interactive status menu",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("menu", pflag.ContinueOnError)
			a.addConnectionFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return menuui.Run(ctx, client)
		},
	}
}
