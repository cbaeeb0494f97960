// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// Create inserts a task owned by the caller, records a "created"
// history row, and re-fetches the view before returning the stored
// task. Failures are *syncer.InsertError.
func (s *Synchronizer) Create(ctx context.Context, draft Draft) (planner.Task, error) {
	caller, ok := s.data.Caller()
	if !ok {
		return planner.Task{}, &syncer.InsertError{Collection: datastore.TableTasks, Err: datastore.ErrAuthRequired}
	}
	task, err := draft.task()
	if err != nil {
		return planner.Task{}, &syncer.InsertError{Collection: datastore.TableTasks, Err: err}
	}
	task.CreatedBy = caller

	payload, err := s.data.Insert(ctx, datastore.TableTasks, task)
	if err != nil {
		return planner.Task{}, &syncer.InsertError{Collection: datastore.TableTasks, Err: err}
	}
	created, err := datastore.Decode[planner.Task](payload)
	if err != nil {
		return planner.Task{}, &syncer.InsertError{Collection: datastore.TableTasks, Err: err}
	}

	s.appendHistory(ctx, created.ID, planner.ActionCreated, nil, planner.Ref(string(created.Status)))
	s.refresh(ctx)
	s.logger.Info("task created", "task_id", created.ID, "team_id", planner.Deref(created.TeamID))
	return created, nil
}

// Update applies patch and returns the stored task. A changed status
// or priority appends one history row each; history failures are
// logged and do not undo the update. Failures are *syncer.WriteError.
func (s *Synchronizer) Update(ctx context.Context, id string, patch Patch) (planner.Task, error) {
	fields, err := patch.fields()
	if err != nil {
		return planner.Task{}, &syncer.WriteError{Collection: datastore.TableTasks, Op: "update", ID: id, Err: err}
	}
	change, err := s.data.Update(ctx, datastore.TableTasks, id, fields)
	if err != nil {
		return planner.Task{}, &syncer.WriteError{Collection: datastore.TableTasks, Op: "update", ID: id, Err: err}
	}
	before, err := datastore.Decode[planner.Task](change.Old)
	if err != nil {
		return planner.Task{}, &syncer.WriteError{Collection: datastore.TableTasks, Op: "update", ID: id, Err: err}
	}
	after, err := datastore.Decode[planner.Task](change.New)
	if err != nil {
		return planner.Task{}, &syncer.WriteError{Collection: datastore.TableTasks, Op: "update", ID: id, Err: err}
	}

	if before.Status != after.Status {
		s.appendHistory(ctx, id, planner.ActionStatusChanged,
			planner.Ref(string(before.Status)), planner.Ref(string(after.Status)))
	}
	if before.Priority != after.Priority {
		s.appendHistory(ctx, id, planner.ActionPriorityChanged,
			planner.Ref(string(before.Priority)), planner.Ref(string(after.Priority)))
	}

	s.mu.Lock()
	changed := s.active != 0 && s.upsertLocked(after)
	s.mu.Unlock()
	if changed {
		s.notifier.Notify()
	}
	return after, nil
}

// Delete removes the task. Deleting a task that is already gone
// succeeds.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.data.Delete(ctx, datastore.TableTasks, id); err != nil {
		return &syncer.WriteError{Collection: datastore.TableTasks, Op: "delete", ID: id, Err: err}
	}
	s.mu.Lock()
	changed := s.removeLocked(id)
	s.mu.Unlock()
	if changed {
		s.notifier.Notify()
	}
	return nil
}

func (s *Synchronizer) appendHistory(ctx context.Context, taskID string, action planner.HistoryAction, oldValue, newValue *string) {
	_, err := s.data.Insert(ctx, datastore.TableTaskHistory, planner.TaskHistory{
		TaskID:   taskID,
		Action:   action,
		OldValue: oldValue,
		NewValue: newValue,
	})
	if err != nil {
		s.logger.Warn("task history write failed", "task_id", taskID, "action", action, "error", err)
	}
}
