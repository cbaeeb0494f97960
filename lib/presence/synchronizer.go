// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// User is an online user's presence row joined with their profile.
type User = syncer.Joined[planner.Presence]

// Config configures a Synchronizer. Data is required. Zero Window and
// Interval take the planner defaults; nil Clock means clock.Real().
type Config struct {
	Data     datastore.DataService
	Clock    clock.Clock
	Window   time.Duration
	Interval time.Duration
	Logger   *slog.Logger
}

// Synchronizer keeps the list of users seen within the window.
//
// Every presence event triggers a full re-fetch, and so does a poll
// every Interval: users age out of the window without any event.
type Synchronizer struct {
	data     datastore.DataService
	clock    clock.Clock
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
	notifier *syncer.Notifier
	scope    syncer.Scope

	ctx    context.Context
	cancel context.CancelFunc

	// fetchMu serializes fetch-and-apply so a slow fetch cannot
	// overwrite the result of a later one.
	fetchMu sync.Mutex

	mu sync.Mutex
	// active is the generation of the installed feed, 0 before the
	// first successful LoadOnline and after Close.
	active  uint64
	online  []User
	watcher *syncer.Watcher
	polling bool
}

// New returns an empty synchronizer. Call LoadOnline to populate it.
func New(cfg Config) *Synchronizer {
	s := &Synchronizer{
		data:     cfg.Data,
		clock:    cfg.Clock,
		window:   cfg.Window,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		notifier: syncer.NewNotifier(),
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.window <= 0 {
		s.window = planner.PresenceWindow
	}
	if s.interval <= 0 {
		s.interval = planner.PresenceInterval
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// LoadOnline subscribes to presence changes, fetches the online list,
// and starts the poll. Calling it again replaces the feed and
// re-fetches; the poll is started once.
func (s *Synchronizer) LoadOnline(ctx context.Context) error {
	generation := s.scope.Advance()

	watcher, err := syncer.Watch(s.ctx, s.data,
		datastore.Subscription{Table: datastore.TablePresence},
		syncer.Handlers{
			Event:  func(datastore.Event) { s.background(generation) },
			Resync: func() { s.background(generation) },
		},
		s.logger)
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TablePresence, Err: err}
	}

	if err := s.refresh(ctx, generation); err != nil {
		watcher.Stop()
		return &syncer.FetchError{Collection: datastore.TablePresence, Err: err}
	}

	s.mu.Lock()
	if !s.scope.IsCurrent(generation) {
		s.mu.Unlock()
		watcher.Stop()
		return nil
	}
	previous := s.watcher
	s.active, s.watcher = generation, watcher
	startPoll := !s.polling
	s.polling = true
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	if startPoll {
		ticker := s.clock.NewTicker(s.interval)
		go s.poll(ticker)
	}
	return nil
}

func (s *Synchronizer) poll(ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.background(s.scope.Current())
		}
	}
}

func (s *Synchronizer) background(generation uint64) {
	if err := s.refresh(s.ctx, generation); err != nil && s.ctx.Err() == nil {
		s.logger.Warn("presence refresh failed", "error", err)
	}
}

// refresh re-fetches the online list and applies it if generation is
// current or belongs to the installed feed.
func (s *Synchronizer) refresh(ctx context.Context, generation uint64) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	online, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.scope.IsCurrent(generation) && generation != s.active {
		s.mu.Unlock()
		return nil
	}
	changed := !slices.EqualFunc(s.online, online, sameUser)
	s.online = online
	s.mu.Unlock()
	if changed {
		s.notifier.Notify()
	}
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context) ([]User, error) {
	cutoff := clock.Timestamp(s.clock.Now().Add(-s.window))
	rows, err := s.data.Select(ctx, datastore.From(datastore.TablePresence).
		Filter(datastore.Gte("last_seen", cutoff)).
		Sort(datastore.Desc("last_seen")))
	if err != nil {
		return nil, err
	}
	presence, err := datastore.DecodeAll[planner.Presence](rows)
	if err != nil {
		return nil, err
	}
	return syncer.FetchAndJoin(ctx, s.data, presence, func(p planner.Presence) string { return p.UserID })
}

func sameUser(a, b User) bool {
	return a.Row == b.Row && a.Profile == b.Profile
}

// Online returns the users seen within the window, most recent first.
func (s *Synchronizer) Online() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.online)
}

// IsOnline reports whether userID is in the current online list.
func (s *Synchronizer) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.online, func(user User) bool { return user.Row.UserID == userID })
}

// Changed receives after the online list changes.
func (s *Synchronizer) Changed() <-chan struct{} { return s.notifier.C() }

// Close stops the poll and releases the feed.
func (s *Synchronizer) Close() {
	s.scope.Advance()
	s.cancel()
	s.mu.Lock()
	watcher := s.watcher
	s.watcher, s.active = nil, 0
	s.mu.Unlock()
	if watcher != nil {
		watcher.Stop()
	}
}
