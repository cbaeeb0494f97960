// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commentsync

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// Comment is a comment joined with its author's profile.
type Comment = syncer.Joined[planner.Comment]

// Config holds a Synchronizer's collaborators. Data is required.
type Config struct {
	Data   datastore.DataService
	Logger *slog.Logger
}

// Synchronizer owns the comment list of one task.
type Synchronizer struct {
	taskID   string
	data     datastore.DataService
	logger   *slog.Logger
	notifier *syncer.Notifier
	scope    syncer.Scope

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   uint64
	comments []Comment
	watcher  *syncer.Watcher
	pending  []change
}

// change is a feed event with the author profile already joined, so
// it can be applied under the lock.
type change struct {
	kind    datastore.EventKind
	comment Comment
}

// New returns a synchronizer for taskID. Call Load to populate it.
func New(cfg Config, taskID string) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		taskID:   taskID,
		data:     cfg.Data,
		logger:   logger.With("task_id", taskID),
		notifier: syncer.NewNotifier(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// TaskID returns the task this synchronizer is scoped to.
func (s *Synchronizer) TaskID() string { return s.taskID }

// Load subscribes to the task's comments and fetches them oldest
// first. Reloading replaces the feed.
func (s *Synchronizer) Load(ctx context.Context) error {
	generation := s.scope.Advance()
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	filter := datastore.Eq("task_id", s.taskID)
	watcher, err := syncer.Watch(s.ctx, s.data,
		datastore.Subscription{Table: datastore.TableComments, Filter: &filter},
		syncer.Handlers{
			Event:  func(event datastore.Event) { s.handleEvent(generation, event) },
			Resync: func() { s.resync(generation) },
		},
		s.logger)
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableComments, Err: err}
	}

	comments, err := s.fetch(ctx)
	if err != nil {
		watcher.Stop()
		return &syncer.FetchError{Collection: datastore.TableComments, Err: err}
	}

	s.mu.Lock()
	if !s.scope.IsCurrent(generation) {
		s.mu.Unlock()
		watcher.Stop()
		return nil
	}
	previous := s.watcher
	s.active, s.comments, s.watcher = generation, comments, watcher
	for _, pending := range s.pending {
		s.applyLocked(pending)
	}
	s.pending = nil
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	s.notifier.Notify()
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context) ([]Comment, error) {
	rows, err := s.data.Select(ctx, datastore.From(datastore.TableComments).
		Filter(datastore.Eq("task_id", s.taskID)).
		Sort(datastore.Asc("created_at")))
	if err != nil {
		return nil, err
	}
	comments, err := datastore.DecodeAll[planner.Comment](rows)
	if err != nil {
		return nil, err
	}
	return syncer.FetchAndJoin(ctx, s.data, comments, author)
}

func author(comment planner.Comment) string { return comment.UserID }

// Add posts text as the caller. Text that is empty after trimming is
// ignored. The comment is not added locally; it arrives on the feed.
func (s *Synchronizer) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	_, err := s.data.Insert(ctx, datastore.TableComments, planner.Comment{
		TaskID:  s.taskID,
		Content: text,
	})
	if err != nil {
		return &syncer.InsertError{Collection: datastore.TableComments, Err: err}
	}
	return nil
}

// Delete removes one of the caller's comments. The local list changes
// when the delete event arrives.
func (s *Synchronizer) Delete(ctx context.Context, commentID string) error {
	if err := s.data.Delete(ctx, datastore.TableComments, commentID); err != nil {
		return &syncer.WriteError{Collection: datastore.TableComments, Op: "delete", ID: commentID, Err: err}
	}
	return nil
}

func (s *Synchronizer) handleEvent(generation uint64, event datastore.Event) {
	prepared, ok := s.prepare(event)
	if !ok {
		return
	}

	s.mu.Lock()
	changed := false
	switch {
	case generation == s.active:
		changed = s.applyLocked(prepared)
	case s.scope.IsCurrent(generation):
		s.pending = append(s.pending, prepared)
	}
	s.mu.Unlock()
	if changed {
		s.notifier.Notify()
	}
}

// prepare decodes an event and, for inserts, joins the author.
func (s *Synchronizer) prepare(event datastore.Event) (change, bool) {
	payload := event.New
	if event.Kind == datastore.EventDelete {
		payload = event.Old
	}
	comment, err := datastore.Decode[planner.Comment](payload)
	if err != nil {
		s.logger.Warn("undecodable comment event", "error", err)
		return change{}, false
	}
	prepared := change{kind: event.Kind, comment: Comment{Row: comment, Profile: planner.Profile{ID: comment.UserID}}}

	if event.Kind == datastore.EventInsert {
		profiles, err := syncer.FetchProfiles(s.ctx, s.data, []string{comment.UserID})
		if err != nil {
			s.logger.Warn("author lookup failed", "comment_id", comment.ID, "user_id", comment.UserID, "error", err)
		} else if profile, ok := profiles[comment.UserID]; ok {
			prepared.comment.Profile = profile
		}
	}
	return prepared, true
}

func (s *Synchronizer) resync(generation uint64) {
	comments, err := s.fetch(s.ctx)
	if err != nil {
		s.logger.Warn("comment resync failed", "error", err)
		return
	}
	s.mu.Lock()
	if generation != s.active {
		s.mu.Unlock()
		return
	}
	s.comments = comments
	s.mu.Unlock()
	s.notifier.Notify()
}

// applyLocked reconciles one prepared change. Must be called with
// s.mu held.
func (s *Synchronizer) applyLocked(prepared change) bool {
	comment := prepared.comment
	index := slices.IndexFunc(s.comments, func(existing Comment) bool { return existing.Row.ID == comment.Row.ID })

	switch prepared.kind {
	case datastore.EventInsert:
		if index >= 0 {
			s.comments = slices.Delete(s.comments, index, index+1)
		}
		position, _ := slices.BinarySearchFunc(s.comments, comment, oldestFirst)
		s.comments = slices.Insert(s.comments, position, comment)
		return true

	case datastore.EventUpdate:
		if index < 0 {
			return false
		}
		s.comments[index].Row = comment.Row
		return true

	case datastore.EventDelete:
		if index < 0 {
			return false
		}
		s.comments = slices.Delete(s.comments, index, index+1)
		return true
	}
	return false
}

// oldestFirst orders by created_at ascending, placing the target after
// existing comments with the same timestamp.
func oldestFirst(existing, target Comment) int {
	if existing.Row.CreatedAt <= target.Row.CreatedAt {
		return -1
	}
	return 1
}

// Comments returns the list, oldest first.
func (s *Synchronizer) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.comments)
}

// Changed receives after the list changes.
func (s *Synchronizer) Changed() <-chan struct{} { return s.notifier.C() }

// Close releases the feed.
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
