// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner defines the rows teamflow synchronizes: tasks, teams,
// team memberships, comments, presence, task history, and the user
// profile summary joined onto all of them.
//
// The datastore owns these rows; synchronizers hold non-authoritative
// copies. Field names are the json tags, which are also the column
// names in the datastore and the keys in CBOR row payloads.
//
// Timestamps are strings in clock.TimestampLayout. References to other
// rows are ID strings; nullable references are *string and encode as
// null when unset.
package planner
