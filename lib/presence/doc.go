// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence publishes and observes who is online.
//
// A [Heartbeat] upserts the signed-in user's presence row when it
// starts and once per interval afterwards. A [Synchronizer] lists the
// users whose last heartbeat falls inside the recency window, most
// recent first. There is no leave signal: a user drops off the list
// once their heartbeat stops and the window lapses, which the
// synchronizer notices on its own poll.
//
// Both run on an injected [clock.Clock] so tests can cross the window
// with clock.Fake instead of waiting five minutes.
package presence
