// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasksync keeps a filtered, creation-ordered (newest first)
// copy of the caller's tasks in step with the datastore.
//
// [Synchronizer.Load] selects the filter, fetches, and subscribes to
// the tasks feed. The feed is opened before the fetch and events that
// arrive during it are replayed onto the fetched rows, so nothing
// committed in between is lost. Reconciliation:
//
//   - insert matching the filter: prepend (an existing id is replaced)
//   - update: replace in place, drop when it no longer matches, or
//     insert at its creation position when it newly matches
//   - delete: remove by id
//
// Mutations write through. Create re-fetches so the new task is in
// place before it returns; Update and Delete apply the confirmed row.
// Status and priority changes append TaskHistory rows on a best-effort
// basis.
package tasksync
