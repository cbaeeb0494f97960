// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Filter selects which visible tasks a view shows.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterAssigned Filter = "assigned"
	FilterUrgent   Filter = "urgent"
)

// Scope narrows a filter to personal tasks or to one team's tasks.
type Scope string

const (
	ScopeAny      Scope = ""
	ScopePersonal Scope = "personal"
	ScopeTeam     Scope = "team"
)

// FilterSpec is a complete task view selection. Statuses and
// Priorities, when non-empty, further restrict the view to those
// values.
type FilterSpec struct {
	Filter     Filter
	Scope      Scope
	TeamID     string
	Statuses   []planner.Status
	Priorities []planner.Priority
}

// Validate checks the spec is well-formed. An empty Filter means all.
func (f FilterSpec) Validate() error {
	switch f.Filter {
	case "", FilterAll, FilterAssigned, FilterUrgent:
	default:
		return fmt.Errorf("tasksync: unknown filter %q", f.Filter)
	}
	switch f.Scope {
	case ScopeAny, ScopePersonal:
	case ScopeTeam:
		if f.TeamID == "" {
			return errors.New("tasksync: team scope requires a team ID")
		}
	default:
		return fmt.Errorf("tasksync: unknown scope %q", f.Scope)
	}
	for _, status := range f.Statuses {
		if !status.Valid() {
			return fmt.Errorf("tasksync: unknown status %q", status)
		}
	}
	for _, priority := range f.Priorities {
		if !priority.Valid() {
			return fmt.Errorf("tasksync: unknown priority %q", priority)
		}
	}
	return nil
}

// conditions translates the spec into datastore conditions for caller.
func (f FilterSpec) conditions(caller string) []datastore.Condition {
	var conditions []datastore.Condition
	switch f.Filter {
	case FilterAssigned:
		conditions = append(conditions, datastore.Eq("assignee_id", caller))
	case FilterUrgent:
		conditions = append(conditions, datastore.Eq("priority", planner.PriorityUrgent))
	}
	switch f.Scope {
	case ScopePersonal:
		conditions = append(conditions, datastore.IsNull("team_id"), datastore.Eq("created_by", caller))
	case ScopeTeam:
		conditions = append(conditions, datastore.Eq("team_id", f.TeamID))
	}
	if len(f.Statuses) > 0 {
		conditions = append(conditions, datastore.In("status", f.Statuses...))
	}
	if len(f.Priorities) > 0 {
		conditions = append(conditions, datastore.In("priority", f.Priorities...))
	}
	return conditions
}

// Matches reports whether task belongs in the view for caller. It is
// the in-memory mirror of the query and assumes the task is already
// visible to caller.
func (f FilterSpec) Matches(task planner.Task, caller string) bool {
	switch f.Filter {
	case FilterAssigned:
		if planner.Deref(task.AssigneeID) != caller {
			return false
		}
	case FilterUrgent:
		if task.Priority != planner.PriorityUrgent {
			return false
		}
	}
	switch f.Scope {
	case ScopePersonal:
		if task.TeamID != nil || task.CreatedBy != caller {
			return false
		}
	case ScopeTeam:
		if planner.Deref(task.TeamID) != f.TeamID {
			return false
		}
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, task.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, task.Priority) {
		return false
	}
	return true
}

