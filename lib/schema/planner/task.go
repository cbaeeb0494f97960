// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTaskTitle replaces a title that is blank after trimming.
const DefaultTaskTitle = "Untitled task"

// Priority orders tasks into board lanes.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities returns every priority in board order, lowest first.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Label is the display name.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	}
	return string(p)
}

// Status is a task's workflow state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses returns every status in workflow order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Label is the display name.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// ParsePriority converts user input to a Priority.
func ParsePriority(value string) (Priority, error) {
	priority := Priority(strings.ToLower(strings.TrimSpace(value)))
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q (want low, medium, high, or urgent)", value)
	}
	return priority, nil
}

// ParseStatus converts user input to a Status. "in_progress" is
// accepted as a spelling of "in-progress".
func ParseStatus(value string) (Status, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
	status := Status(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q (want todo, in-progress, review, or done)", value)
	}
	return status, nil
}

// Task is one card on the board.
//
// A task with a team reference is never private, and a private task
// has no team reference. NormalizePrivacy enforces this; Validate
// rejects rows that violate it.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`

	// Deadline is an RFC 3339 timestamp, nil when the task has none.
	Deadline *string `json:"deadline"`

	AssigneeID *string `json:"assignee_id"`
	CreatedBy  string  `json:"created_by"`
	TeamID     *string `json:"team_id"`
	IsPrivate  bool    `json:"is_private"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// NormalizePrivacy derives IsPrivate from TeamID. An empty team ID is
// treated as no team.
func (t *Task) NormalizePrivacy() {
	if t.TeamID != nil && *t.TeamID == "" {
		t.TeamID = nil
	}
	t.IsPrivate = t.TeamID == nil
}

// Validate checks enum membership, the deadline format, and the
// privacy invariant.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task: title is required")
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("task: unknown priority %q", t.Priority)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task: unknown status %q", t.Status)
	}
	if t.Deadline != nil {
		if _, err := time.Parse(time.RFC3339, *t.Deadline); err != nil {
			return fmt.Errorf("task: deadline must be RFC 3339: %w", err)
		}
	}
	if t.IsPrivate != (t.TeamID == nil) {
		return fmt.Errorf("task: is_private=%v contradicts team_id=%v", t.IsPrivate, Deref(t.TeamID))
	}
	return nil
}

// Ref returns a pointer to value, or nil for the empty string.
func Ref(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Deref returns the referenced string, or "" for nil.
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
