// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncer

// Notifier is a coalescing change signal. Any number of Notify calls
// between two reads of C collapse into one receive, so a slow renderer
// sees "something changed" rather than a backlog.
type Notifier struct {
	channel chan struct{}
}

// NewNotifier returns a Notifier with nothing pending.
func NewNotifier() *Notifier {
	return &Notifier{channel: make(chan struct{}, 1)}
}

// Notify marks a change pending. Never blocks.
func (n *Notifier) Notify() {
	select {
	case n.channel <- struct{}{}:
	default:
	}
}

// C receives once per batch of Notify calls.
func (n *Notifier) C() <-chan struct{} { return n.channel }
