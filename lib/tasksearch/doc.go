// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasksearch ranks tasks against a free-text query with
// Okapi BM25.
//
// An [Index] is built from a snapshot of tasks, typically the
// synchronizer's current view, and is immutable afterwards. Titles
// count three times as much as descriptions. Tokens are lowercased
// letter and digit runs of at least two runes, so "API-v2" yields
// "api" and "v2".
//
// The index holds copies of the tasks it was built from. Rebuild it
// after the view changes; construction is linear in the total token
// count and cheap for board-sized corpora.
package tasksearch
