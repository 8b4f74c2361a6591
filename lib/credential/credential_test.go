// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/sealed"
	"github.com/bureau-foundation/presence/lib/secret"
)

func requireToken(t *testing.T, token *secret.Buffer, err error, want string) {
	t.Helper()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer token.Close()
	if token.String() != want {
		t.Errorf("token = %q, want %q", token.String(), want)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PRESENCE_TEST_TOKEN", "  xoxp-env \n")
	token, err := Load(config.CredentialConfig{Source: config.CredentialEnv, Env: "PRESENCE_TEST_TOKEN"})
	requireToken(t, token, err, "xoxp-env")
}

func TestLoadFromEnvUnset(t *testing.T) {
	t.Setenv("PRESENCE_TEST_TOKEN", "")
	_, err := Load(config.CredentialConfig{Source: config.CredentialEnv, Env: "PRESENCE_TEST_TOKEN"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("xoxp-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	token, err := Load(config.CredentialConfig{Source: config.CredentialFile, Path: path})
	requireToken(t, token, err, "xoxp-file")
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := Load(config.CredentialConfig{
		Source: config.CredentialFile,
		Path:   filepath.Join(t.TempDir(), "absent"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadFromSealedFile(t *testing.T) {
	directory := t.TempDir()
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	identityPath := filepath.Join(directory, "identity.txt")
	identityFile, err := os.Create(identityPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := sealed.WriteIdentity(identityFile, keypair, time.Now()); err != nil {
		t.Fatalf("WriteIdentity: %v", err)
	}
	identityFile.Close()

	ciphertext, err := sealed.Encrypt([]byte("xoxp-sealed\n"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tokenPath := filepath.Join(directory, "token.age")
	if err := os.WriteFile(tokenPath, ciphertext, 0o600); err != nil {
		t.Fatal(err)
	}

	token, err := Load(config.CredentialConfig{
		Source:       config.CredentialSealed,
		Path:         tokenPath,
		IdentityPath: identityPath,
	})
	requireToken(t, token, err, "xoxp-sealed")
}

func TestLoadFromSealedFileWrongIdentity(t *testing.T) {
	directory := t.TempDir()
	owner, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer owner.Close()
	stranger, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer stranger.Close()

	ciphertext, err := sealed.Encrypt([]byte("xoxp-sealed"), []string{owner.PublicKey})
	if err != nil {
		t.Fatal(err)
	}
	tokenPath := filepath.Join(directory, "token.age")
	os.WriteFile(tokenPath, ciphertext, 0o600)

	identityPath := filepath.Join(directory, "identity.txt")
	identityFile, _ := os.Create(identityPath)
	sealed.WriteIdentity(identityFile, stranger, time.Now())
	identityFile.Close()

	_, err = Load(config.CredentialConfig{
		Source:       config.CredentialSealed,
		Path:         tokenPath,
		IdentityPath: identityPath,
	})
	if err == nil {
		t.Fatal("decryption with the wrong identity succeeded")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("wrong identity reported as not found: %v", err)
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	_, err := Load(config.CredentialConfig{Source: config.CredentialKeyring, KeyringService: "presence", KeyringUser: "slack"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty keyring: err = %v, want ErrNotFound", err)
	}

	stored, err := secret.NewFromBytes([]byte("xoxp-keyring"))
	if err != nil {
		t.Fatal(err)
	}
	defer stored.Close()
	if err := StoreKeyring("presence", "slack", stored); err != nil {
		t.Fatalf("StoreKeyring: %v", err)
	}

	token, err := Load(config.CredentialConfig{Source: config.CredentialKeyring, KeyringService: "presence", KeyringUser: "slack"})
	requireToken(t, token, err, "xoxp-keyring")

	if err := DeleteKeyring("presence", "slack"); err != nil {
		t.Fatalf("DeleteKeyring: %v", err)
	}
	if err := DeleteKeyring("presence", "slack"); err != nil {
		t.Errorf("second DeleteKeyring: %v", err)
	}
	if _, err := Load(config.CredentialConfig{Source: config.CredentialKeyring, KeyringService: "presence", KeyringUser: "slack"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestKeyringFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	_, err := Load(config.CredentialConfig{Source: config.CredentialKeyring, KeyringService: "presence", KeyringUser: "slack"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want a non-NotFound failure", err)
	}
}

func TestUnknownSource(t *testing.T) {
	if _, err := Load(config.CredentialConfig{Source: "vault"}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
