// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package datastore is the embedded realization of teamflow's remote
// data service: CRUD over the named collections in
// [github.com/bureau-foundation/teamflow/lib/schema/planner], filtered
// and ordered queries, upsert, and a scoped change feed.
//
// A single [Store] backs every session. Each session talks to it
// through a [Client], which implements [DataService] as the user its
// caller function reports; [Store.Admin] returns an unrestricted
// client for the identity provider.
//
// Rows cross the boundary as CBOR. Columns have declared kinds (text,
// nullable text, bool) and timestamps are fixed-width RFC 3339 UTC
// strings, so comparisons on them are chronological.
//
// Writes are serialized. Each committed change is addressed to the
// subscribed feeds inside its transaction, where the row policy is
// evaluated per subscriber, and delivered after commit in commit
// order. Delivery never blocks: a full feed buffer marks the feed for
// resync and its owner re-fetches.
//
// Failures are [*Error] values with a code; use errors.Is with
// [ErrAuthRequired], [ErrNotFound], [ErrConflict], [ErrTransport] or
// [ErrInvalid].
package datastore
