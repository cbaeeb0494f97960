// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds passwords outside the Go heap while the CLI
// handles them.
//
// A [Buffer] is an anonymous mmap region excluded from core dumps and,
// where RLIMIT_MEMLOCK allows, locked against swap. Close zeroes and
// unmaps it. [Read] fills a Buffer from a file or stdin, and [Zero]
// clears a heap slice that briefly held the same bytes.
//
// Strings handed to the identity provider are heap copies made with
// [Buffer.String] at that boundary.
//
// Depends on golang.org/x/sys/unix. No teamflow-internal dependencies.
package secret
