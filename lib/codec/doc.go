// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration shared by every teamflow
// package.
//
// Rows leave the datastore as CBOR items (RawMessage) and are decoded
// by the synchronizer that asked for them into the planner schema
// types. Change-feed events carry the same encoding, and snapshot
// files are a CBOR stream. Encoding uses Core Deterministic Encoding
// (RFC 8949 section 4.2), so the same row always encodes to the same
// bytes.
//
// Schema types carry `json` tags only. fxamacker/cbor falls back to
// json tags when no cbor tag is present, so one tag set names the
// fields for CBOR rows, CLI --json output, and task import files.
//
//	data, err := codec.Marshal(task)
//	var decoded planner.Task
//	err = codec.Unmarshal(data, &decoded)
//
// Fields turns a tagged struct into the generic map the datastore binds
// to SQL columns.
package codec
