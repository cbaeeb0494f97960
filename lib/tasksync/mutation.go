// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Draft is a new task. Identity, creator, privacy and timestamps are
// assigned on create. Zero Priority and Status default to medium and
// todo. The json tags match the task columns so drafts can be read
// from import files.
type Draft struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    planner.Priority `json:"priority"`
	Status      planner.Status   `json:"status"`
	Deadline    *string          `json:"deadline"`
	AssigneeID  *string          `json:"assignee_id"`
	TeamID      *string          `json:"team_id"`
}

func (d Draft) task() (planner.Task, error) {
	task := planner.Task{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Priority:    d.Priority,
		Status:      d.Status,
		Deadline:    emptyToNil(d.Deadline),
		AssigneeID:  emptyToNil(d.AssigneeID),
		TeamID:      emptyToNil(d.TeamID),
	}
	if task.Title == "" {
		task.Title = planner.DefaultTaskTitle
	}
	if task.Priority == "" {
		task.Priority = planner.PriorityMedium
	}
	if task.Status == "" {
		task.Status = planner.StatusTodo
	}
	task.NormalizePrivacy()
	if err := task.Validate(); err != nil {
		return planner.Task{}, &datastore.Error{Code: datastore.CodeInvalid, Table: datastore.TableTasks, Message: err.Error()}
	}
	return task, nil
}

// Patch is a partial task update; nil fields are left alone. For the
// nullable fields (Deadline, AssigneeID, TeamID) a pointer to "" clears
// the value. Setting TeamID re-derives the privacy flag.
type Patch struct {
	Title       *string
	Description *string
	Priority    *planner.Priority
	Status      *planner.Status
	Deadline    *string
	AssigneeID  *string
	TeamID      *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) fields() (map[string]any, error) {
	fields := make(map[string]any)
	invalid := func(format string, args ...any) error {
		return &datastore.Error{Code: datastore.CodeInvalid, Table: datastore.TableTasks, Message: fmt.Sprintf(format, args...)}
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			title = planner.DefaultTaskTitle
		}
		fields["title"] = title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, invalid("unknown priority %q", *p.Priority)
		}
		fields["priority"] = *p.Priority
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, invalid("unknown status %q", *p.Status)
		}
		fields["status"] = *p.Status
	}
	if p.Deadline != nil {
		if *p.Deadline != "" {
			if _, err := time.Parse(time.RFC3339, *p.Deadline); err != nil {
				return nil, invalid("deadline must be RFC 3339: %v", err)
			}
		}
		fields["deadline"] = nilIfEmpty(*p.Deadline)
	}
	if p.AssigneeID != nil {
		fields["assignee_id"] = nilIfEmpty(*p.AssigneeID)
	}
	if p.TeamID != nil {
		fields["team_id"] = nilIfEmpty(*p.TeamID)
		fields["is_private"] = *p.TeamID == ""
	}
	return fields, nil
}

func emptyToNil(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
