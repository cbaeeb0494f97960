// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the teamflow command tree.
//
// Every command that touches data opens the configured store, builds a
// [teamflow.Client] and, when the command needs a user, resumes the
// session saved by "teamflow login". Global flags (--config and
// --verbose) are accepted by every such command.
//
// Output goes to the writer given to [Root]; diagnostics go to the
// command logger on stderr.
package commands
