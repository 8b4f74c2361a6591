// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential opens the bearer token presenced sends to Slack.
//
// The token comes from one of four sources, chosen by
// [config.CredentialConfig].Source: an environment variable, a
// plaintext file, an age-sealed file opened with a local identity, or
// the OS keychain. Every source returns the token in a [secret.Buffer]
// so it stays out of swap and core dumps. A source with nothing stored
// returns an error wrapping [ErrNotFound]; presenced keeps running
// without a token in that case and every update is rejected.
package credential

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/sealed"
	"github.com/bureau-foundation/presence/lib/secret"
)

// ErrNotFound means the configured source holds no token.
var ErrNotFound = errors.New("credential not found")

// Load reads the token from the configured source. The caller must
// Close the returned buffer.
func Load(cfg config.CredentialConfig) (*secret.Buffer, error) {
	switch cfg.Source {
	case config.CredentialEnv:
		return fromEnv(cfg.Env)
	case config.CredentialFile:
		return fromFile(cfg.Path)
	case config.CredentialSealed:
		return fromSealedFile(cfg.Path, cfg.IdentityPath)
	case config.CredentialKeyring:
		return fromKeyring(cfg.KeyringService, cfg.KeyringUser)
	default:
		return nil, fmt.Errorf("credential: unknown source %q", cfg.Source)
	}
}

func fromEnv(name string) (*secret.Buffer, error) {
	value := bytes.TrimSpace([]byte(os.Getenv(name)))
	if len(value) == 0 {
		return nil, fmt.Errorf("credential: environment variable %s: %w", name, ErrNotFound)
	}
	return secret.NewFromBytes(value)
}

func fromFile(path string) (*secret.Buffer, error) {
	token, err := secret.ReadFromPath(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credential: %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", path, err)
	}
	return token, nil
}

func fromSealedFile(path, identityPath string) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credential: %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", path, err)
	}

	identity, err := sealed.ReadIdentityFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	defer identity.Close()

	token, err := sealed.Decrypt(ciphertext, identity)
	if err != nil {
		return nil, fmt.Errorf("credential: opening %s: %w", path, err)
	}
	return token, nil
}

func fromKeyring(service, user string) (*secret.Buffer, error) {
	value, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("credential: keyring %s/%s: %w", service, user, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("credential: keyring %s/%s: %w", service, user, err)
	}
	trimmed := bytes.TrimSpace([]byte(value))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("credential: keyring %s/%s: %w", service, user, ErrNotFound)
	}
	return secret.NewFromBytes(trimmed)
}

// StoreKeyring saves token in the OS keychain under service/user.
// The keychain API takes a string, so one unprotected copy exists for
// the duration of the call.
func StoreKeyring(service, user string, token *secret.Buffer) error {
	if err := keyring.Set(service, user, token.String()); err != nil {
		return fmt.Errorf("credential: storing keyring %s/%s: %w", service, user, err)
	}
	return nil
}

// DeleteKeyring removes the keychain entry. A missing entry is not an
// error.
func DeleteKeyring(service, user string) error {
	err := keyring.Delete(service, user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("credential: deleting keyring %s/%s: %w", service, user, err)
	}
	return nil
}
