// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the presenced configuration file.
//
// Configuration is loaded from a single file named by either the
// PRESENCE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. The
// format follows the file extension:
//
//   - .yaml, .yml -- YAML
//   - .toml -- TOML
//   - .json, .jsonc -- JSON, with // comments and trailing commas allowed
//
// Unknown keys are errors in every format. Durations are strings
// ("3s", "15m"). Path fields expand ${VAR} and ${VAR:-default}, and a
// leading "~/" means the home directory. No environment variable
// overrides a config value.
//
// Key exports:
//
//   - [Config] -- the file schema, with [Default] values
//   - [Load] and [LoadFile] -- the two entry points
//   - [Config.Engine] and [Config.ManualPresets] -- conversion to
//     presence types
package config
