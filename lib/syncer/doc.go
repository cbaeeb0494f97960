// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncer is the machinery the entity synchronizers share: a
// feed watcher with guaranteed release, a coalescing change
// notification, a scope generation counter for discarding stale
// fetches, the pure profile join step, and the FetchError and
// InsertError types synchronizers return.
package syncer
