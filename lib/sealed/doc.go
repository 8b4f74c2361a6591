// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed reads and writes age-encrypted token files.
//
// A sealed token is an ASCII-armored age file encrypted to one or more
// x25519 recipients, so it can be produced with the stock age CLI or
// with presencectl seal-token. Identities and decrypted tokens are
// returned as [secret.Buffer] values.
package sealed
