// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
	"github.com/bureau-foundation/teamflow/lib/tasksync"
	"github.com/bureau-foundation/teamflow/lib/testutil"
)

const convergeTimeout = 5 * time.Second

type fixture struct {
	store *datastore.Store
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store, err := datastore.Open(datastore.Config{
		Path:  filepath.Join(t.TempDir(), "tasks.db"),
		Clock: fake,
	})
	if err != nil {
		t.Fatalf("datastore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &fixture{store: store, clock: fake}
}

func (f *fixture) client(userID string) *datastore.Client {
	return f.store.Client(func() (string, bool) { return userID, true })
}

func (f *fixture) synchronizer(t *testing.T, userID string) *tasksync.Synchronizer {
	t.Helper()
	synchronizer := tasksync.New(tasksync.Config{Data: f.client(userID)})
	t.Cleanup(synchronizer.Close)
	return synchronizer
}

func (f *fixture) join(t *testing.T, teamID string, userIDs ...string) {
	t.Helper()
	for _, userID := range userIDs {
		_, err := f.client(userID).Insert(context.Background(), datastore.TableTeamMembers, planner.TeamMember{
			TeamID: teamID, UserID: userID, Role: planner.RoleMember,
		})
		if err != nil {
			t.Fatalf("join %s to %s: %v", userID, teamID, err)
		}
	}
}

func create(t *testing.T, f *fixture, synchronizer *tasksync.Synchronizer, draft tasksync.Draft) planner.Task {
	t.Helper()
	f.clock.Advance(time.Second)
	task, err := synchronizer.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create %q: %v", draft.Title, err)
	}
	return task
}

func load(t *testing.T, synchronizer *tasksync.Synchronizer, spec tasksync.FilterSpec) []planner.Task {
	t.Helper()
	if err := synchronizer.Load(context.Background(), spec); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return synchronizer.Tasks()
}

func titles(tasks []planner.Task) []string {
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Title
	}
	return names
}

func history(t *testing.T, f *fixture, taskID string) []planner.TaskHistory {
	t.Helper()
	rows, err := f.store.Admin().Select(context.Background(),
		datastore.From(datastore.TableTaskHistory).Filter(datastore.Eq("task_id", taskID)))
	if err != nil {
		t.Fatalf("Select history: %v", err)
	}
	entries, err := datastore.DecodeAll[planner.TaskHistory](rows)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	return entries
}

func checkPrivacy(t *testing.T, task planner.Task) {
	t.Helper()
	if task.IsPrivate != (task.TeamID == nil) {
		t.Fatalf("task %q: is_private=%v with team_id=%v", task.Title, task.IsPrivate, planner.Deref(task.TeamID))
	}
}

func TestLoadOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	create(t, f, alice, tasksync.Draft{Title: "oldest"})
	create(t, f, alice, tasksync.Draft{Title: "middle"})
	create(t, f, alice, tasksync.Draft{Title: "newest"})

	got := titles(load(t, alice, tasksync.FilterSpec{}))
	want := []string{"newest", "middle", "oldest"}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("titles = %v, want %v", got, want)
	}
}

func TestCreateDefaultsAndPrivacy(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team-1", "alice")
	alice := f.synchronizer(t, "alice")
	load(t, alice, tasksync.FilterSpec{})

	personal := create(t, f, alice, tasksync.Draft{Title: "   "})
	if personal.Title != planner.DefaultTaskTitle {
		t.Errorf("blank title stored as %q, want %q", personal.Title, planner.DefaultTaskTitle)
	}
	if personal.Priority != planner.PriorityMedium || personal.Status != planner.StatusTodo {
		t.Errorf("defaults = %s/%s, want medium/todo", personal.Priority, personal.Status)
	}
	if personal.CreatedBy != "alice" {
		t.Errorf("created_by = %q, want alice", personal.CreatedBy)
	}
	checkPrivacy(t, personal)

	shared := create(t, f, alice, tasksync.Draft{Title: "shared", TeamID: planner.Ref("team-1")})
	checkPrivacy(t, shared)
	if shared.IsPrivate {
		t.Error("team task is private")
	}

	// The view is refreshed before Create returns.
	if got := alice.Tasks(); len(got) != 2 || got[0].ID != shared.ID {
		t.Fatalf("view after create = %v", titles(got))
	}

	entries := history(t, f, shared.ID)
	if len(entries) != 1 || entries[0].Action != planner.ActionCreated || entries[0].UserID != "alice" {
		t.Fatalf("creation history = %+v", entries)
	}
}

func TestUpdateKeepsPrivacyInvariant(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team-1", "alice")
	alice := f.synchronizer(t, "alice")
	task := create(t, f, alice, tasksync.Draft{Title: "moving"})

	moved, err := alice.Update(context.Background(), task.ID, tasksync.Patch{TeamID: planner.Ref("team-1")})
	if err != nil {
		t.Fatalf("Update to team: %v", err)
	}
	checkPrivacy(t, moved)
	if moved.IsPrivate {
		t.Fatal("task moved to a team is still private")
	}

	empty := ""
	back, err := alice.Update(context.Background(), task.ID, tasksync.Patch{TeamID: &empty})
	if err != nil {
		t.Fatalf("Update to personal: %v", err)
	}
	checkPrivacy(t, back)
	if !back.IsPrivate {
		t.Fatal("task moved out of its team is not private")
	}
}

func TestUpdateStatusRoundTrip(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	task := create(t, f, alice, tasksync.Draft{Title: "review me"})

	review := planner.StatusReview
	if _, err := alice.Update(context.Background(), task.ID, tasksync.Patch{Status: &review}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	tasks := load(t, alice, tasksync.FilterSpec{})
	if len(tasks) != 1 || tasks[0].Status != planner.StatusReview {
		t.Fatalf("reloaded tasks = %+v, want one task in review", tasks)
	}

	var statusChanges []planner.TaskHistory
	for _, entry := range history(t, f, task.ID) {
		if entry.Action == planner.ActionStatusChanged {
			statusChanges = append(statusChanges, entry)
		}
	}
	if len(statusChanges) != 1 {
		t.Fatalf("got %d status_changed rows, want 1", len(statusChanges))
	}
	entry := statusChanges[0]
	if planner.Deref(entry.OldValue) != "todo" || planner.Deref(entry.NewValue) != "review" {
		t.Errorf("history old=%q new=%q, want todo -> review", planner.Deref(entry.OldValue), planner.Deref(entry.NewValue))
	}
}

func TestUpdateWithoutStatusChangeWritesNoHistory(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	task := create(t, f, alice, tasksync.Draft{Title: "steady", Priority: planner.PriorityHigh})

	high := planner.PriorityHigh
	title := "steady, renamed"
	if _, err := alice.Update(context.Background(), task.ID, tasksync.Patch{Priority: &high, Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if entries := history(t, f, task.ID); len(entries) != 1 {
		t.Fatalf("history = %+v, want only the creation row", entries)
	}
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	load(t, alice, tasksync.FilterSpec{})
	task := create(t, f, alice, tasksync.Draft{Title: "doomed"})

	if err := alice.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := alice.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if got := alice.Tasks(); len(got) != 0 {
		t.Fatalf("cache still holds %v", titles(got))
	}
}

func TestUrgentFilterAcrossScopes(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team-1", "alice")
	alice := f.synchronizer(t, "alice")
	create(t, f, alice, tasksync.Draft{Title: "personal urgent", Priority: planner.PriorityUrgent})
	create(t, f, alice, tasksync.Draft{Title: "personal low", Priority: planner.PriorityLow})
	create(t, f, alice, tasksync.Draft{Title: "team urgent", Priority: planner.PriorityUrgent, TeamID: planner.Ref("team-1")})
	create(t, f, alice, tasksync.Draft{Title: "team medium", TeamID: planner.Ref("team-1")})

	for _, spec := range []tasksync.FilterSpec{
		{Filter: tasksync.FilterUrgent},
		{Filter: tasksync.FilterUrgent, Scope: tasksync.ScopePersonal},
		{Filter: tasksync.FilterUrgent, Scope: tasksync.ScopeTeam, TeamID: "team-1"},
	} {
		tasks := load(t, alice, spec)
		if len(tasks) == 0 {
			t.Errorf("scope %q: no urgent tasks", spec.Scope)
		}
		for _, task := range tasks {
			if task.Priority != planner.PriorityUrgent {
				t.Errorf("scope %q: %q has priority %s", spec.Scope, task.Title, task.Priority)
			}
		}
	}

	if got := load(t, alice, tasksync.FilterSpec{Filter: tasksync.FilterUrgent}); len(got) != 2 {
		t.Errorf("unscoped urgent = %v, want both urgent tasks", titles(got))
	}
}

func TestAssignedFilter(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	bob := f.synchronizer(t, "bob")
	create(t, f, alice, tasksync.Draft{Title: "for bob", AssigneeID: planner.Ref("bob")})
	create(t, f, alice, tasksync.Draft{Title: "for alice", AssigneeID: planner.Ref("alice")})

	if got := titles(load(t, bob, tasksync.FilterSpec{Filter: tasksync.FilterAssigned})); len(got) != 1 || got[0] != "for bob" {
		t.Fatalf("bob's assigned view = %v", got)
	}
}

func TestFeedReconciliation(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team-1", "alice", "bob")
	alice := f.synchronizer(t, "alice")
	bob := f.synchronizer(t, "bob")
	load(t, bob, tasksync.FilterSpec{Filter: tasksync.FilterUrgent, Scope: tasksync.ScopeTeam, TeamID: "team-1"})

	first := create(t, f, alice, tasksync.Draft{Title: "first", Priority: planner.PriorityUrgent, TeamID: planner.Ref("team-1")})
	create(t, f, alice, tasksync.Draft{Title: "ignored", Priority: planner.PriorityLow, TeamID: planner.Ref("team-1")})
	second := create(t, f, alice, tasksync.Draft{Title: "second", Priority: planner.PriorityUrgent, TeamID: planner.Ref("team-1")})

	testutil.Eventually(t, convergeTimeout, func() bool {
		got := bob.Tasks()
		return len(got) == 2 && got[0].ID == second.ID && got[1].ID == first.ID
	}, "bob sees both urgent team tasks, newest first")

	renamed := "first, renamed"
	if _, err := alice.Update(context.Background(), first.ID, tasksync.Patch{Title: &renamed}); err != nil {
		t.Fatalf("Update title: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		got := bob.Tasks()
		return len(got) == 2 && got[1].Title == renamed
	}, "rename replaced in place")

	low := planner.PriorityLow
	if _, err := alice.Update(context.Background(), second.ID, tasksync.Patch{Priority: &low}); err != nil {
		t.Fatalf("Update priority: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		got := bob.Tasks()
		return len(got) == 1 && got[0].ID == first.ID
	}, "task no longer urgent dropped from view")

	urgent := planner.PriorityUrgent
	if _, err := alice.Update(context.Background(), second.ID, tasksync.Patch{Priority: &urgent}); err != nil {
		t.Fatalf("Update priority back: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		got := bob.Tasks()
		return len(got) == 2 && got[0].ID == second.ID
	}, "task urgent again reinserted at its creation position")

	if err := alice.Delete(context.Background(), first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		got := bob.Tasks()
		return len(got) == 1 && got[0].ID == second.ID
	}, "delete removed from view")
}

func TestChangedNotifies(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	load(t, alice, tasksync.FilterSpec{})
	testutil.RequireReceive(t, alice.Changed(), convergeTimeout, "notification after load")

	create(t, f, alice, tasksync.Draft{Title: "ping"})
	testutil.RequireReceive(t, alice.Changed(), convergeTimeout, "notification after create")
}

func TestLoadFailureKeepsPriorState(t *testing.T) {
	f := newFixture(t)
	var signedIn atomic.Bool
	signedIn.Store(true)
	data := f.store.Client(func() (string, bool) { return "alice", signedIn.Load() })
	synchronizer := tasksync.New(tasksync.Config{Data: data})
	defer synchronizer.Close()

	create(t, f, synchronizer, tasksync.Draft{Title: "kept"})
	load(t, synchronizer, tasksync.FilterSpec{})

	signedIn.Store(false)
	err := synchronizer.Load(context.Background(), tasksync.FilterSpec{Filter: tasksync.FilterUrgent})
	var fetchErr *syncer.FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, datastore.ErrAuthRequired) {
		t.Fatalf("Load without session = %v, want FetchError wrapping ErrAuthRequired", err)
	}
	if got := synchronizer.Tasks(); len(got) != 1 || got[0].Title != "kept" {
		t.Fatalf("cache after failed load = %v", titles(got))
	}
	if synchronizer.Spec().Filter != tasksync.FilterAll {
		t.Fatalf("filter after failed load = %q, want all", synchronizer.Spec().Filter)
	}
}

func TestCreateRefetchesAfterFailedLoad(t *testing.T) {
	f := newFixture(t)
	f.join(t, "team-1", "bob")
	bob := f.synchronizer(t, "bob")
	create(t, f, bob, tasksync.Draft{Title: "bob team task", TeamID: planner.Ref("team-1")})

	alice := f.synchronizer(t, "alice")
	if got := load(t, alice, tasksync.FilterSpec{}); len(got) != 0 {
		t.Fatalf("alice sees %v before joining", titles(got))
	}
	// Joining writes no tasks event; only a re-fetch reveals the team task.
	f.join(t, "team-1", "alice")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := alice.Load(cancelled, tasksync.FilterSpec{Filter: tasksync.FilterUrgent}); err == nil {
		t.Fatal("Load with a cancelled context succeeded")
	}

	create(t, f, alice, tasksync.Draft{Title: "alice own"})
	got := titles(alice.Tasks())
	if len(got) != 2 || got[0] != "alice own" || got[1] != "bob team task" {
		t.Fatalf("tasks when Create returns = %v, want [alice own, bob team task]", got)
	}
	if alice.Spec().Filter != tasksync.FilterAll {
		t.Fatalf("filter = %q, want all", alice.Spec().Filter)
	}
}

func TestFeedKeepsApplyingAfterFailedLoad(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	load(t, alice, tasksync.FilterSpec{})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := alice.Load(cancelled, tasksync.FilterSpec{Filter: tasksync.FilterUrgent}); err == nil {
		t.Fatal("Load with a cancelled context succeeded")
	}

	writer := f.synchronizer(t, "alice")
	create(t, f, writer, tasksync.Draft{Title: "from elsewhere"})
	testutil.Eventually(t, convergeTimeout, func() bool {
		got := alice.Tasks()
		return len(got) == 1 && got[0].Title == "from elsewhere"
	}, "insert applied to the installed view")
}

func TestCreateRequiresSession(t *testing.T) {
	f := newFixture(t)
	synchronizer := tasksync.New(tasksync.Config{Data: f.store.Client(nil)})
	defer synchronizer.Close()

	_, err := synchronizer.Create(context.Background(), tasksync.Draft{Title: "nope"})
	var insertErr *syncer.InsertError
	if !errors.As(err, &insertErr) || !errors.Is(err, datastore.ErrAuthRequired) {
		t.Fatalf("Create without session = %v, want InsertError wrapping ErrAuthRequired", err)
	}
}

func TestInvalidPatchRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	task := create(t, f, alice, tasksync.Draft{Title: "strict"})

	bogus := planner.Status("blocked")
	if _, err := alice.Update(context.Background(), task.ID, tasksync.Patch{Status: &bogus}); !errors.Is(err, datastore.ErrInvalid) {
		t.Errorf("unknown status = %v, want ErrInvalid", err)
	}
	deadline := "next tuesday"
	if _, err := alice.Update(context.Background(), task.ID, tasksync.Patch{Deadline: &deadline}); !errors.Is(err, datastore.ErrInvalid) {
		t.Errorf("bad deadline = %v, want ErrInvalid", err)
	}
}

func TestByStatus(t *testing.T) {
	f := newFixture(t)
	alice := f.synchronizer(t, "alice")
	create(t, f, alice, tasksync.Draft{Title: "a"})
	create(t, f, alice, tasksync.Draft{Title: "b", Status: planner.StatusDone})
	load(t, alice, tasksync.FilterSpec{})

	lanes := alice.ByStatus()
	if len(lanes) != 4 {
		t.Fatalf("got %d lanes, want 4", len(lanes))
	}
	if len(lanes[planner.StatusTodo]) != 1 || len(lanes[planner.StatusDone]) != 1 || len(lanes[planner.StatusReview]) != 0 {
		t.Fatalf("lanes = %v", lanes)
	}
}
