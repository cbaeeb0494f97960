// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

// HistoryAction tags a TaskHistory row.
type HistoryAction string

const (
	ActionCreated         HistoryAction = "created"
	ActionStatusChanged   HistoryAction = "status_changed"
	ActionPriorityChanged HistoryAction = "priority_changed"
)

// TaskHistory is an append-only audit row. The client writes these and
// never reads, edits, or deletes them.
type TaskHistory struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"task_id"`
	UserID    string        `json:"user_id"`
	Action    HistoryAction `json:"action"`
	OldValue  *string       `json:"old_value"`
	NewValue  *string       `json:"new_value"`
	CreatedAt string        `json:"created_at"`
}
