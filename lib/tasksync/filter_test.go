// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync_test

import (
	"testing"

	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/tasksync"
)

func TestFilterSpecMatches(t *testing.T) {
	teamTask := planner.Task{
		Priority:   planner.PriorityUrgent,
		Status:     planner.StatusReview,
		CreatedBy:  "alice",
		AssigneeID: planner.Ref("bob"),
		TeamID:     planner.Ref("team-1"),
	}
	personal := planner.Task{
		Priority:  planner.PriorityLow,
		Status:    planner.StatusTodo,
		CreatedBy: "alice",
		IsPrivate: true,
	}

	tests := []struct {
		name   string
		spec   tasksync.FilterSpec
		task   planner.Task
		caller string
		want   bool
	}{
		{"all", tasksync.FilterSpec{Filter: tasksync.FilterAll}, personal, "alice", true},
		{"assigned to caller", tasksync.FilterSpec{Filter: tasksync.FilterAssigned}, teamTask, "bob", true},
		{"assigned elsewhere", tasksync.FilterSpec{Filter: tasksync.FilterAssigned}, teamTask, "alice", false},
		{"urgent", tasksync.FilterSpec{Filter: tasksync.FilterUrgent}, teamTask, "alice", true},
		{"not urgent", tasksync.FilterSpec{Filter: tasksync.FilterUrgent}, personal, "alice", false},
		{"personal own", tasksync.FilterSpec{Scope: tasksync.ScopePersonal}, personal, "alice", true},
		{"personal other creator", tasksync.FilterSpec{Scope: tasksync.ScopePersonal}, personal, "bob", false},
		{"personal excludes team", tasksync.FilterSpec{Scope: tasksync.ScopePersonal}, teamTask, "alice", false},
		{"team match", tasksync.FilterSpec{Scope: tasksync.ScopeTeam, TeamID: "team-1"}, teamTask, "alice", true},
		{"team mismatch", tasksync.FilterSpec{Scope: tasksync.ScopeTeam, TeamID: "team-2"}, teamTask, "alice", false},
		{"status list", tasksync.FilterSpec{Statuses: []planner.Status{planner.StatusReview}}, teamTask, "alice", true},
		{"status list miss", tasksync.FilterSpec{Statuses: []planner.Status{planner.StatusDone}}, teamTask, "alice", false},
		{"priority list", tasksync.FilterSpec{Priorities: []planner.Priority{planner.PriorityLow}}, personal, "alice", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.spec.Matches(test.task, test.caller); got != test.want {
				t.Errorf("Matches = %v, want %v", got, test.want)
			}
		})
	}
}

func TestFilterSpecValidate(t *testing.T) {
	invalid := []tasksync.FilterSpec{
		{Filter: "overdue"},
		{Scope: "company"},
		{Scope: tasksync.ScopeTeam},
		{Statuses: []planner.Status{"blocked"}},
		{Priorities: []planner.Priority{"critical"}},
	}
	for _, spec := range invalid {
		if err := spec.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", spec)
		}
	}
	if err := (tasksync.FilterSpec{Scope: tasksync.ScopeTeam, TeamID: "team-1"}).Validate(); err != nil {
		t.Errorf("valid team spec: %v", err)
	}
}
