// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import "time"

const (
	// PresenceWindow is how recently a user must have written presence
	// to count as online.
	PresenceWindow = 5 * time.Minute

	// PresenceInterval is the heartbeat period and the poll period of
	// the presence synchronizer.
	PresenceInterval = 30 * time.Second
)

// Presence is keyed by user. There is no leave signal: a user goes
// offline when their heartbeat stops and the window lapses.
type Presence struct {
	UserID   string `json:"user_id"`
	LastSeen string `json:"last_seen"`
}

// Online reports whether LastSeen falls within window of now. An
// unparseable timestamp is offline.
func (p Presence) Online(now time.Time, window time.Duration) bool {
	seen, err := time.Parse(time.RFC3339, p.LastSeen)
	if err != nil {
		return false
	}
	return !seen.Before(now.Add(-window))
}
