// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netwatch reports which network the machine is attached to.
//
// A [Source] calls its emit function with an [Observation] whenever
// the network identity changes. The first observation is always
// emitted, so the consumer starts with a known state. Two sources
// exist:
//
//   - [CommandSource] runs a command such as "iwgetid -r" on a fixed
//     interval and treats its first output line as the network name.
//   - [FileSource] watches a file with inotify. Something else (a
//     NetworkManager dispatcher script, a udev hook) writes the
//     network name into it.
//
// In both, empty output, a failing command, or a missing file means
// "no connectivity".
package netwatch
