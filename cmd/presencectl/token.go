// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/credential"
	"github.com/bureau-foundation/presence/lib/sealed"
	"github.com/bureau-foundation/presence/lib/secret"
)

// openPrivate creates path with mode 0600. It refuses to overwrite
// unless force is set.
func openPrivate(path string, force bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	return os.OpenFile(path, flags, 0o600)
}

func writePrivate(path string, data []byte, force bool) error {
	file, err := openPrivate(path, force)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

func (a *app) keygenCommand() *cli.Command {
	var output string
	var force bool
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity for sealing the token",
		Description: `Generate an age x25519 identity file. Point credential.identity_path
at it and seal the token to the printed public key with
"presencectl seal-token".`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVarP(&output, "out", "o", "", "identity file to create (required)")
			flagSet.BoolVar(&force, "force", false, "overwrite an existing file")
			return flagSet
		},
		Run: func(args []string) error {
			if output == "" {
				return fmt.Errorf("--out is required")
			}
			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			file, err := openPrivate(config.ExpandPath(output), force)
			if err != nil {
				return err
			}
			if err := sealed.WriteIdentity(file, keypair, a.now()); err != nil {
				file.Close()
				return fmt.Errorf("writing %s: %w", output, err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Public key: %s\n", keypair.PublicKey)
			return nil
		},
	}
}

func (a *app) sealTokenCommand() *cli.Command {
	var (
		recipients []string
		input      string
		output     string
		force      bool
	)
	return &cli.Command{
		Name:    "seal-token",
		Summary: "Encrypt a Slack token to one or more age recipients",
		Description: `Encrypt a Slack token for the "sealed" credential source. The token is
read from --in ("-" for the first line of stdin) and the armored age
file is written to --out with mode 0600.`,
		Examples: []cli.Example{
			{
				Description: "Seal a token pasted on stdin",
				Command:     "presencectl seal-token --recipient age1... --out ~/.config/presence/token.age",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal-token", pflag.ContinueOnError)
			flagSet.StringSliceVarP(&recipients, "recipient", "r", nil, "age1... public key (repeatable)")
			flagSet.StringVar(&input, "in", "-", "token file, or - for stdin")
			flagSet.StringVarP(&output, "out", "o", "", "sealed file to create (required)")
			flagSet.BoolVar(&force, "force", false, "overwrite an existing file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(recipients) == 0 {
				return fmt.Errorf("at least one --recipient is required")
			}
			if output == "" {
				return fmt.Errorf("--out is required")
			}
			for _, recipient := range recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return fmt.Errorf("recipient %q: %w", recipient, err)
				}
			}

			token, err := readToken(input)
			if err != nil {
				return err
			}
			defer token.Close()

			ciphertext, err := sealed.Encrypt(token.Bytes(), recipients)
			if err != nil {
				return err
			}
			if err := writePrivate(config.ExpandPath(output), ciphertext, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Sealed token written to %s\n", output)
			return nil
		},
	}
}

func readToken(input string) (*secret.Buffer, error) {
	if input != "-" {
		input = config.ExpandPath(input)
	}
	token, err := secret.ReadFromPath(input)
	if err != nil {
		return nil, fmt.Errorf("reading token from %s: %w", input, err)
	}
	return token, nil
}

// keyringFlags binds --service and --user with the config defaults.
func keyringFlags(flagSet *pflag.FlagSet, service, user *string) {
	defaults := config.Default().Credential
	flagSet.StringVar(service, "service", defaults.KeyringService, "keyring service name")
	flagSet.StringVar(user, "user", defaults.KeyringUser, "keyring account name")
}

func (a *app) storeTokenCommand() *cli.Command {
	var input, service, user string
	return &cli.Command{
		Name:    "store-token",
		Summary: "Save a Slack token in the OS keyring",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("store-token", pflag.ContinueOnError)
			flagSet.StringVar(&input, "in", "-", "token file, or - for stdin")
			keyringFlags(flagSet, &service, &user)
			return flagSet
		},
		Run: func(args []string) error {
			token, err := readToken(input)
			if err != nil {
				return err
			}
			defer token.Close()
			if err := credential.StoreKeyring(service, user, token); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Token stored in keyring %s/%s\n", service, user)
			return nil
		},
	}
}

func (a *app) forgetTokenCommand() *cli.Command {
	var service, user string
	return &cli.Command{
		Name:    "forget-token",
		Summary: "Remove the Slack token from the OS keyring",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("forget-token", pflag.ContinueOnError)
			keyringFlags(flagSet, &service, &user)
			return flagSet
		},
		Run: func(args []string) error {
			if err := credential.DeleteKeyring(service, user); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Keyring entry %s/%s removed\n", service, user)
			return nil
		},
	}
}
