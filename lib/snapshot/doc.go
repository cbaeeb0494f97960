// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot exports and imports the whole datastore as one
// stream, and reads task drafts from JSON-with-comments files.
//
// A snapshot is, from the outside in:
//
//   - optionally, an age envelope to one or more X25519 recipients
//   - the magic "TFSNAP", one compression tag byte, then the body
//     compressed with that algorithm (none, lz4 frame, or zstd)
//   - a CBOR sequence: a [Header], one [Record] per row in table
//     dependency order, and a closing record carrying the row count
//
// [Import] detects the age envelope and the compression tag itself.
// It replaces every table inside one transaction, so a truncated or
// corrupt snapshot leaves the store untouched. Imports publish no feed
// events; open synchronizers must reload.
package snapshot
