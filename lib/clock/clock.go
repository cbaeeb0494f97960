// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into every component that stamps
// rows, measures presence recency, or runs a periodic loop. Binaries
// pass Real(); tests pass Fake() and move time with Advance.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. The channel holds at most one
// pending tick; a slow reader loses ticks instead of queueing them.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop ends the tick stream. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Reset changes the period and restarts the cycle from now.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Timestamp formats t in the fixed-width UTC layout used for every
// stored timestamp. Fixed width keeps lexicographic and chronological
// order identical.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TimestampLayout is RFC 3339 with exactly three fractional digits.
// Values in this layout parse with time.RFC3339.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
