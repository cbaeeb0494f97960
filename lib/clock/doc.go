// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for teamflow.
//
// The datastore stamps created_at and updated_at from a Clock, the
// presence heartbeat and poller tick on one, and the recency window is
// measured against its Now. Binaries use Real(). Tests use Fake(), which
// only moves when Advance is called:
//
//	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
//	heartbeat.Start(ctx)
//	fake.WaitForTimers(1)             // heartbeat ticker is armed
//	fake.Advance(30 * time.Second)    // exactly one beat fires
//
// Timestamp renders a time in the fixed-width layout every stored row
// uses, so string comparison of two timestamps orders them in time.
package clock
