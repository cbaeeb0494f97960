// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/teamflow/lib/codec"
)

// EventKind is the mutation an Event reports.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one committed change delivered on a Feed. New is set for
// insert and update, Old for update and delete. Sequence increases by
// one per committed change across the whole store, so a subscriber
// sees increasing (not necessarily contiguous) values.
type Event struct {
	Table    string
	Kind     EventKind
	New      codec.RawMessage
	Old      codec.RawMessage
	Sequence uint64
}

// Subscription scopes a Feed. Events restricts the mutation kinds
// (empty means all). Filter, when set, must use OpEq: an insert or
// update is delivered when the new row matches, a delete when the old
// row matches, and an update whose old row matched but whose new row
// does not is delivered too so the subscriber can drop it.
type Subscription struct {
	Table  string
	Events []EventKind
	Filter *Condition
}

func (s Subscription) wants(kind EventKind) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, wanted := range s.Events {
		if wanted == kind {
			return true
		}
	}
	return false
}

// feedBufferSize is the per-subscriber event buffer. When a
// subscriber's buffer is full the event is dropped and the subscriber
// is marked for resync; the owner re-fetches instead of replaying.
const feedBufferSize = 256

// Feed is a scoped change-feed handle. The owner must call Release
// when its scope ends; Release is idempotent and safe from any
// goroutine.
type Feed struct {
	subscription Subscription
	caller       string
	admin        bool
	channel      chan Event
	resync       atomic.Bool
	// signal has one slot and is filled when resync is first set, so
	// a reader blocked on Events also wakes for overflow.
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	hub    *hub
}

// Events delivers changes in commit order. The channel is never
// closed; select on Done to observe Release.
func (f *Feed) Events() <-chan Event { return f.channel }

// Overflow fires when events were dropped. The reader should call
// Resync, then re-fetch its collection.
func (f *Feed) Overflow() <-chan struct{} { return f.signal }

// Done is closed by Release.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Resync reports and clears the overflow mark.
func (f *Feed) Resync() bool { return f.resync.Swap(false) }

// Release unregisters the feed. Events already buffered remain
// readable.
func (f *Feed) Release() {
	f.once.Do(func() {
		close(f.done)
		f.hub.remove(f)
	})
}

func (f *Feed) markResync() {
	if !f.resync.Swap(true) {
		select {
		case f.signal <- struct{}{}:
		default:
		}
	}
}

// hub is the subscriber registry. Registration and fan-out share one
// mutex; fan-out never blocks under it.
type hub struct {
	mu          sync.Mutex
	subscribers map[string][]*Feed
	sequence    uint64
}

func newHub() *hub {
	return &hub{subscribers: make(map[string][]*Feed)}
}

func (h *hub) add(feed *Feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	table := feed.subscription.Table
	h.subscribers[table] = append(h.subscribers[table], feed)
}

func (h *hub) remove(feed *Feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	table := feed.subscription.Table
	feeds := h.subscribers[table]
	for i, existing := range feeds {
		if existing == feed {
			h.subscribers[table] = append(feeds[:i], feeds[i+1:]...)
			break
		}
	}
	if len(h.subscribers[table]) == 0 {
		delete(h.subscribers, table)
	}
}

// snapshot returns the live feeds for table.
func (h *hub) snapshot(table string) []*Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Feed(nil), h.subscribers[table]...)
}

// delivery is one event addressed to one feed, computed inside the
// write transaction and sent after commit.
type delivery struct {
	feed  *Feed
	event Event
}

// publish assigns the next sequence number to deliveries of one
// committed change and sends them. Sends are non-blocking: a full
// buffer marks the feed for resync. Released feeds are skipped.
func (h *hub) publish(deliveries []delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sequence++
	for _, item := range deliveries {
		select {
		case <-item.feed.done:
			continue
		default:
		}
		item.event.Sequence = h.sequence
		select {
		case item.feed.channel <- item.event:
		default:
			item.feed.markResync()
		}
	}
}
