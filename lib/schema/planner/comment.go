// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

// Comment is a note on a task. Only its author may delete it.
type Comment struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
