// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR modes shared by the presence control
// socket. presenced and presencectl encode every request and response
// through this package so both sides agree byte for byte.
//
// JSON stays the format for everything external: the Slack Web API,
// presencectl --json output, and the JSONC config variant. CBOR is used
// only on the local unix socket.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2). Types
// that implement encoding.TextMarshaler (status modes, expiration
// specs) travel as CBOR text strings.
//
// Control protocol types carry `json` tags only. fxamacker/cbor falls
// back to them when no `cbor` tag is present, so the same struct serves
// the socket and presencectl --json.
package codec
