// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/teamflow/lib/codec"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// Config holds a Synchronizer's collaborators. Data is required.
type Config struct {
	Data   datastore.DataService
	Logger *slog.Logger
}

// Synchronizer owns one cached task view. Safe for concurrent use.
type Synchronizer struct {
	data     datastore.DataService
	logger   *slog.Logger
	notifier *syncer.Notifier
	scope    syncer.Scope

	// ctx bounds the feed and resync fetches; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	active  uint64
	spec    FilterSpec
	caller  string
	tasks   []planner.Task
	watcher *syncer.Watcher
	// pending holds events from the feed of a load still in flight.
	pending []datastore.Event
}

// New returns an empty synchronizer. Call Load to populate it.
func New(cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		data:     cfg.Data,
		logger:   logger,
		notifier: syncer.NewNotifier(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load switches the view to spec: it subscribes to the tasks feed,
// fetches the matching tasks newest first, and replaces the cache. On
// failure the previous view, including its feed, is kept and a
// *syncer.FetchError is returned. A load overtaken by a later Load
// returns nil without touching the cache.
func (s *Synchronizer) Load(ctx context.Context, spec FilterSpec) error {
	caller, ok := s.data.Caller()
	if !ok {
		return &syncer.FetchError{Collection: datastore.TableTasks, Err: datastore.ErrAuthRequired}
	}
	if spec.Filter == "" {
		spec.Filter = FilterAll
	}
	if err := spec.Validate(); err != nil {
		return &syncer.FetchError{Collection: datastore.TableTasks, Err: err}
	}

	generation := s.scope.Advance()
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	watcher, err := syncer.Watch(s.ctx, s.data,
		datastore.Subscription{Table: datastore.TableTasks},
		syncer.Handlers{
			Event:  func(event datastore.Event) { s.handleEvent(generation, event) },
			Resync: func() { s.resync(generation) },
		},
		s.logger.With("table", datastore.TableTasks))
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableTasks, Err: err}
	}

	tasks, err := s.fetch(ctx, spec, caller)
	if err != nil {
		watcher.Stop()
		return &syncer.FetchError{Collection: datastore.TableTasks, Err: err}
	}

	s.mu.Lock()
	if !s.scope.IsCurrent(generation) {
		s.mu.Unlock()
		watcher.Stop()
		s.logger.Debug("discarding superseded task load", "generation", generation)
		return nil
	}
	previous := s.watcher
	s.active, s.spec, s.caller, s.tasks, s.watcher = generation, spec, caller, tasks, watcher
	pending := s.pending
	s.pending = nil
	for _, event := range pending {
		s.applyLocked(event)
	}
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	s.notifier.Notify()
	s.logger.Debug("tasks loaded", "filter", spec.Filter, "scope", spec.Scope, "team_id", spec.TeamID, "count", len(tasks))
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context, spec FilterSpec, caller string) ([]planner.Task, error) {
	rows, err := s.data.Select(ctx, datastore.From(datastore.TableTasks).
		Filter(spec.conditions(caller)...).
		Sort(datastore.Desc("created_at")))
	if err != nil {
		return nil, err
	}
	return datastore.DecodeAll[planner.Task](rows)
}

// refresh re-fetches the installed view, including after a failed
// Load left the scope ahead of it. Failures are logged; the cache is
// kept.
func (s *Synchronizer) refresh(ctx context.Context) {
	s.mu.Lock()
	generation, spec, caller := s.active, s.spec, s.caller
	s.mu.Unlock()
	if generation == 0 {
		return
	}

	tasks, err := s.fetch(ctx, spec, caller)
	if err != nil {
		s.logger.Warn("task refresh failed", "error", err)
		return
	}
	s.mu.Lock()
	if s.active != generation {
		s.mu.Unlock()
		return
	}
	s.tasks = tasks
	s.mu.Unlock()
	s.notifier.Notify()
}

func (s *Synchronizer) handleEvent(generation uint64, event datastore.Event) {
	s.mu.Lock()
	changed := false
	switch {
	case generation == s.active:
		changed = s.applyLocked(event)
	case s.scope.IsCurrent(generation):
		s.pending = append(s.pending, event)
	}
	s.mu.Unlock()
	if changed {
		s.notifier.Notify()
	}
}

func (s *Synchronizer) resync(generation uint64) {
	s.mu.Lock()
	active := generation == s.active
	s.mu.Unlock()
	if active {
		s.refresh(s.ctx)
	}
}

// applyLocked reconciles one event into the cache and reports whether
// the cache changed. Must be called with s.mu held.
func (s *Synchronizer) applyLocked(event datastore.Event) bool {
	switch event.Kind {
	case datastore.EventInsert:
		task, ok := s.decode(event.New)
		if !ok || !s.spec.Matches(task, s.caller) {
			return false
		}
		if index := s.indexLocked(task.ID); index >= 0 {
			s.tasks[index] = task
			return true
		}
		s.tasks = slices.Insert(s.tasks, 0, task)
		return true

	case datastore.EventUpdate:
		task, ok := s.decode(event.New)
		if !ok {
			return false
		}
		return s.upsertLocked(task)

	case datastore.EventDelete:
		task, ok := s.decode(event.Old)
		if !ok {
			return false
		}
		return s.removeLocked(task.ID)
	}
	return false
}

// upsertLocked applies a confirmed version of task: replace in place
// while it matches, drop it when it stops matching, insert it at its
// creation position when it starts matching.
func (s *Synchronizer) upsertLocked(task planner.Task) bool {
	index := s.indexLocked(task.ID)
	matches := s.spec.Matches(task, s.caller)
	switch {
	case index >= 0 && matches:
		s.tasks[index] = task
	case index >= 0:
		s.tasks = slices.Delete(s.tasks, index, index+1)
	case matches:
		position, _ := slices.BinarySearchFunc(s.tasks, task, newestFirst)
		s.tasks = slices.Insert(s.tasks, position, task)
	default:
		return false
	}
	return true
}

func (s *Synchronizer) removeLocked(id string) bool {
	index := s.indexLocked(id)
	if index < 0 {
		return false
	}
	s.tasks = slices.Delete(s.tasks, index, index+1)
	return true
}

func (s *Synchronizer) indexLocked(id string) int {
	return slices.IndexFunc(s.tasks, func(task planner.Task) bool { return task.ID == id })
}

// newestFirst orders by created_at descending. Equal timestamps sort
// the target after the existing rows.
func newestFirst(existing, target planner.Task) int {
	if existing.CreatedAt >= target.CreatedAt {
		return -1
	}
	return 1
}

func (s *Synchronizer) decode(payload codec.RawMessage) (planner.Task, bool) {
	task, err := datastore.Decode[planner.Task](payload)
	if err != nil {
		s.logger.Warn("undecodable task event", "error", err)
		return planner.Task{}, false
	}
	return task, true
}

// Tasks returns a copy of the cached view, newest first.
func (s *Synchronizer) Tasks() []planner.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Task returns the cached task with id.
func (s *Synchronizer) Task(id string) (planner.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index := s.indexLocked(id); index >= 0 {
		return s.tasks[index], true
	}
	return planner.Task{}, false
}

// ByStatus groups the cached view into board lanes. Every status has
// an entry; order within a lane is newest first.
func (s *Synchronizer) ByStatus() map[planner.Status][]planner.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	lanes := make(map[planner.Status][]planner.Task, 4)
	for _, status := range planner.Statuses() {
		lanes[status] = nil
	}
	for _, task := range s.tasks {
		lanes[task.Status] = append(lanes[task.Status], task)
	}
	return lanes
}

// Spec returns the active filter.
func (s *Synchronizer) Spec() FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Changed receives after the cached view changes.
func (s *Synchronizer) Changed() <-chan struct{} { return s.notifier.C() }

// Close releases the feed. The cached view stays readable.
func (s *Synchronizer) Close() {
	s.scope.Advance()
	s.cancel()
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.active = 0
	s.mu.Unlock()
	if watcher != nil {
		watcher.Stop()
	}
}
