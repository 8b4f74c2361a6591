// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command tree behind presencectl: named
// subcommands with their own pflag sets, generated help, and typo
// suggestions for unknown commands and flags.
package cli
