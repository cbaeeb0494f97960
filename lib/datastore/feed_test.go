// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/testutil"
)

const feedTimeout = 5 * time.Second

func subscribe(t *testing.T, client *datastore.Client, subscription datastore.Subscription) *datastore.Feed {
	t.Helper()
	feed, err := client.Subscribe(context.Background(), subscription)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(feed.Release)
	return feed
}

func TestFeedDeliversChangesInCommitOrder(t *testing.T) {
	store, _ := openStore(t)
	alice := as(store, "alice")
	feed := subscribe(t, alice, datastore.Subscription{Table: datastore.TableTasks})
	ctx := context.Background()

	task := insertTask(t, alice, personalTask("tracked"))
	if _, err := alice.Update(ctx, datastore.TableTasks, task.ID, map[string]any{"title": "renamed"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := alice.Delete(ctx, datastore.TableTasks, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var sequence uint64
	for _, want := range []datastore.EventKind{datastore.EventInsert, datastore.EventUpdate, datastore.EventDelete} {
		event := testutil.RequireReceive(t, feed.Events(), feedTimeout, "%s event", want)
		if event.Kind != want {
			t.Fatalf("event kind = %s, want %s", event.Kind, want)
		}
		if event.Sequence <= sequence {
			t.Errorf("sequence %d did not increase past %d", event.Sequence, sequence)
		}
		sequence = event.Sequence
	}

	testutil.RequireNoReceive(t, feed.Events(), 50*time.Millisecond, "extra event")
}

func TestFeedUpdateCarriesOldAndNew(t *testing.T) {
	store, _ := openStore(t)
	alice := as(store, "alice")
	task := insertTask(t, alice, personalTask("before"))
	feed := subscribe(t, alice, datastore.Subscription{
		Table:  datastore.TableTasks,
		Events: []datastore.EventKind{datastore.EventUpdate},
	})

	if _, err := alice.Update(context.Background(), datastore.TableTasks, task.ID, map[string]any{"title": "after"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	event := testutil.RequireReceive(t, feed.Events(), feedTimeout, "update event")
	before, _ := datastore.Decode[planner.Task](event.Old)
	after, _ := datastore.Decode[planner.Task](event.New)
	if before.Title != "before" || after.Title != "after" {
		t.Errorf("update event %q -> %q, want before -> after", before.Title, after.Title)
	}
}

func TestFeedFilter(t *testing.T) {
	store, _ := openStore(t)
	alice := as(store, "alice")
	filter := datastore.Eq("team_id", "team-1")
	feed := subscribe(t, alice, datastore.Subscription{Table: datastore.TableTeamMembers, Filter: &filter})

	addMember(t, alice, "team-2", "bob")
	addMember(t, alice, "team-1", "carol")

	event := testutil.RequireReceive(t, feed.Events(), feedTimeout, "team-1 membership")
	member, err := datastore.Decode[planner.TeamMember](event.New)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if member.UserID != "carol" {
		t.Errorf("delivered membership for %s, want carol", member.UserID)
	}
	testutil.RequireNoReceive(t, feed.Events(), 50*time.Millisecond, "team-2 membership")
}

func TestFeedFilterRejectsRangeOperators(t *testing.T) {
	store, _ := openStore(t)
	filter := datastore.Gte("last_seen", "2026")
	_, err := as(store, "alice").Subscribe(context.Background(), datastore.Subscription{
		Table:  datastore.TablePresence,
		Filter: &filter,
	})
	if !datastore.IsCode(err, datastore.CodeInvalid) {
		t.Fatalf("range filter = %v, want CodeInvalid", err)
	}
}

func TestFeedAppliesRowPolicyPerSubscriber(t *testing.T) {
	store, _ := openStore(t)
	alice, bob := as(store, "alice"), as(store, "bob")
	addMember(t, alice, "team-1", "alice")
	addMember(t, alice, "team-1", "bob")
	bobFeed := subscribe(t, bob, datastore.Subscription{Table: datastore.TableTasks})
	ctx := context.Background()

	insertTask(t, alice, personalTask("private"))
	shared := insertTask(t, alice, teamTask("shared", "team-1"))

	event := testutil.RequireReceive(t, bobFeed.Events(), feedTimeout, "team task insert")
	task, _ := datastore.Decode[planner.Task](event.New)
	if task.ID != shared.ID {
		t.Fatalf("bob received %q, want only the team task", task.Title)
	}

	// Moving the task out of bob's team reaches him as a delete.
	_, err := alice.Update(ctx, datastore.TableTasks, shared.ID, map[string]any{
		"team_id":    nil,
		"is_private": true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	event = testutil.RequireReceive(t, bobFeed.Events(), feedTimeout, "visibility loss")
	if event.Kind != datastore.EventDelete {
		t.Fatalf("visibility loss delivered as %s, want delete", event.Kind)
	}
}

func TestFeedOverflowMarksResync(t *testing.T) {
	store, _ := openStore(t)
	alice := as(store, "alice")
	feed := subscribe(t, alice, datastore.Subscription{Table: datastore.TablePresence})
	ctx := context.Background()

	for range 300 {
		if _, err := alice.Upsert(ctx, datastore.TablePresence, map[string]any{}, "user_id"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	testutil.RequireReceive(t, feed.Overflow(), feedTimeout, "overflow signal")
	if !feed.Resync() {
		t.Fatal("Resync() = false after overflow")
	}
	if feed.Resync() {
		t.Fatal("Resync() did not clear the mark")
	}
}

func TestFeedReleaseStopsDelivery(t *testing.T) {
	store, _ := openStore(t)
	alice := as(store, "alice")
	feed := subscribe(t, alice, datastore.Subscription{Table: datastore.TableTasks})

	feed.Release()
	feed.Release()
	testutil.RequireClosed(t, feed.Done(), feedTimeout, "done after release")

	insertTask(t, alice, personalTask("unseen"))
	testutil.RequireNoReceive(t, feed.Events(), 50*time.Millisecond, "event after release")
}

func TestFeedReleasedWithContext(t *testing.T) {
	store, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	feed, err := as(store, "alice").Subscribe(ctx, datastore.Subscription{Table: datastore.TableTasks})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	testutil.RequireClosed(t, feed.Done(), feedTimeout, "done after context cancel")
}
