// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commentsync keeps one task's comments, oldest first, each
// joined with its author's profile.
//
// Add writes the comment and returns; the comment appears when its
// insert event arrives, after the author's profile has been fetched.
// Inserts are placed by created_at rather than arrival order, with
// equal timestamps kept in arrival order, and an id already present is
// replaced rather than duplicated.
package commentsync
