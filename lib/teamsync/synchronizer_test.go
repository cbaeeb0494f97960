// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package teamsync_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/teamflow/lib/codec"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
	"github.com/bureau-foundation/teamflow/lib/teamsync"
	"github.com/bureau-foundation/teamflow/lib/testutil"
)

const convergeTimeout = 5 * time.Second

func openStore(t *testing.T, users ...string) *datastore.Store {
	t.Helper()
	store, err := datastore.Open(datastore.Config{Path: filepath.Join(t.TempDir(), "teams.db")})
	if err != nil {
		t.Fatalf("datastore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, user := range users {
		_, err := store.Admin().Insert(context.Background(), datastore.TableProfiles, planner.Profile{
			ID:       user,
			Email:    user + "@teamflow.test",
			FullName: strings.ToUpper(user[:1]) + user[1:],
		})
		if err != nil {
			t.Fatalf("Insert profile %s: %v", user, err)
		}
	}
	return store
}

func client(store *datastore.Store, userID string) *datastore.Client {
	return store.Client(func() (string, bool) { return userID, true })
}

func newSynchronizer(t *testing.T, data datastore.DataService) *teamsync.Synchronizer {
	t.Helper()
	synchronizer := teamsync.New(teamsync.Config{Data: data})
	t.Cleanup(synchronizer.Close)
	return synchronizer
}

func memberships(t *testing.T, store *datastore.Store, teamID string) []planner.TeamMember {
	t.Helper()
	rows, err := store.Admin().Select(context.Background(),
		datastore.From(datastore.TableTeamMembers).Filter(datastore.Eq("team_id", teamID)))
	if err != nil {
		t.Fatalf("Select memberships: %v", err)
	}
	members, err := datastore.DecodeAll[planner.TeamMember](rows)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	return members
}

func TestCreateTeamAlpha(t *testing.T) {
	store := openStore(t, "alice")
	alice := newSynchronizer(t, client(store, "alice"))
	ctx := context.Background()

	created, err := alice.CreateTeam(ctx, "  Alpha ", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := alice.LoadTeams(ctx); err != nil {
		t.Fatalf("LoadTeams: %v", err)
	}

	teams := alice.Teams()
	if len(teams) != 1 {
		t.Fatalf("got %d teams, want 1", len(teams))
	}
	team := teams[0]
	if team.Row.Name != "Alpha" || team.Row.OwnerID != "alice" || team.Row.ID != created.ID {
		t.Fatalf("team = %+v, want Alpha owned by alice", team.Row)
	}
	if team.Profile.FullName != "Alice" {
		t.Errorf("owner profile = %+v, want Alice", team.Profile)
	}
	if err := planner.CheckOwnership(team.Row, memberships(t, store, team.Row.ID)); err != nil {
		t.Fatalf("ownership invariant: %v", err)
	}
}

func TestCreateTeamRequiresName(t *testing.T) {
	store := openStore(t, "alice")
	alice := newSynchronizer(t, client(store, "alice"))

	_, err := alice.CreateTeam(context.Background(), "   ", "whitespace")
	var insertErr *syncer.InsertError
	if !errors.As(err, &insertErr) || !errors.Is(err, datastore.ErrInvalid) {
		t.Fatalf("CreateTeam blank name = %v, want InsertError wrapping ErrInvalid", err)
	}
}

// faultyData fails selected writes.
type faultyData struct {
	datastore.DataService
	failInsert      string
	failDelete      string
	failDeleteWhere string
}

var errInjected = errors.New("injected failure")

func (f *faultyData) Insert(ctx context.Context, table string, value any) (codec.RawMessage, error) {
	if table == f.failInsert {
		return nil, &datastore.Error{Code: datastore.CodeTransport, Table: table, Err: errInjected}
	}
	return f.DataService.Insert(ctx, table, value)
}

func (f *faultyData) Delete(ctx context.Context, table, id string) error {
	if table == f.failDelete {
		return &datastore.Error{Code: datastore.CodeTransport, Table: table, Err: errInjected}
	}
	return f.DataService.Delete(ctx, table, id)
}

func (f *faultyData) DeleteWhere(ctx context.Context, table string, conditions ...datastore.Condition) (int, error) {
	if table == f.failDeleteWhere {
		return 0, &datastore.Error{Code: datastore.CodeTransport, Table: table, Err: errInjected}
	}
	return f.DataService.DeleteWhere(ctx, table, conditions...)
}

func teamCount(t *testing.T, store *datastore.Store) int {
	t.Helper()
	rows, err := store.Admin().Select(context.Background(), datastore.From(datastore.TableTeams))
	if err != nil {
		t.Fatalf("Select teams: %v", err)
	}
	return len(rows)
}

func TestCreateTeamRemovesTeamWhenOwnerMembershipFails(t *testing.T) {
	store := openStore(t, "alice")
	data := &faultyData{DataService: client(store, "alice"), failInsert: datastore.TableTeamMembers}
	alice := newSynchronizer(t, data)

	_, err := alice.CreateTeam(context.Background(), "Orphan", "")
	if !errors.Is(err, errInjected) {
		t.Fatalf("CreateTeam = %v, want the membership failure", err)
	}
	if count := teamCount(t, store); count != 0 {
		t.Fatalf("%d teams left after failed create, want 0", count)
	}
}

func TestCreateTeamReportsFailedCleanup(t *testing.T) {
	store := openStore(t, "alice")
	data := &faultyData{
		DataService: client(store, "alice"),
		failInsert:  datastore.TableTeamMembers,
		failDelete:  datastore.TableTeams,
	}
	alice := newSynchronizer(t, data)

	_, err := alice.CreateTeam(context.Background(), "Orphan", "")
	if err == nil || !strings.Contains(err.Error(), "removing team") {
		t.Fatalf("CreateTeam = %v, want both the membership and cleanup failures", err)
	}
	if count := teamCount(t, store); count != 1 {
		t.Fatalf("team count = %d, want the orphan to remain", count)
	}
}

func TestInviteMemberTwice(t *testing.T) {
	store := openStore(t, "alice", "bob")
	alice := newSynchronizer(t, client(store, "alice"))
	ctx := context.Background()
	team, err := alice.CreateTeam(ctx, "Alpha", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	member, err := alice.InviteMember(ctx, team.ID, "Bob@TeamFlow.test")
	if err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	if member.UserID != "bob" || member.Role != planner.RoleMember {
		t.Fatalf("membership = %+v, want bob as member", member)
	}
	before := len(memberships(t, store, team.ID))

	_, err = alice.InviteMember(ctx, team.ID, "bob@teamflow.test")
	if !errors.Is(err, teamsync.ErrAlreadyMember) {
		t.Fatalf("second invite = %v, want ErrAlreadyMember", err)
	}
	if !errors.Is(err, datastore.ErrConflict) {
		t.Fatalf("ErrAlreadyMember does not match ErrConflict: %v", err)
	}
	if after := len(memberships(t, store, team.ID)); after != before {
		t.Fatalf("membership count changed from %d to %d", before, after)
	}
}

func TestAddMemberDuplicateIsAlreadyMember(t *testing.T) {
	store := openStore(t, "alice", "bob")
	alice := newSynchronizer(t, client(store, "alice"))
	ctx := context.Background()
	team, err := alice.CreateTeam(ctx, "Alpha", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := alice.AddMember(ctx, team.ID, "bob", planner.RoleAdmin); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := alice.AddMember(ctx, team.ID, "bob", planner.RoleMember); !errors.Is(err, teamsync.ErrAlreadyMember) {
		t.Fatalf("duplicate AddMember = %v, want ErrAlreadyMember", err)
	}
}

func TestInviteUnknownEmail(t *testing.T) {
	store := openStore(t, "alice")
	alice := newSynchronizer(t, client(store, "alice"))
	ctx := context.Background()
	team, err := alice.CreateTeam(ctx, "Alpha", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	_, err = alice.InviteMember(ctx, team.ID, "nobody@teamflow.test")
	if !errors.Is(err, teamsync.ErrUserNotFound) || !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("invite unknown = %v, want ErrUserNotFound", err)
	}
}

func TestFirstTeamBecomesCurrentOnce(t *testing.T) {
	store := openStore(t, "alice")
	alice := newSynchronizer(t, client(store, "alice"))
	ctx := context.Background()

	first, err := alice.CreateTeam(ctx, "First", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := alice.CreateTeam(ctx, "Second", ""); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if got := alice.CurrentTeamID(); got != first.ID {
		t.Fatalf("current team = %q, want the first team %q", got, first.ID)
	}
	if members := alice.Members(); len(members) != 1 || members[0].Row.Role != planner.RoleOwner {
		t.Fatalf("members = %+v, want the owner", members)
	}

	if err := alice.SelectTeam(ctx, ""); err != nil {
		t.Fatalf("SelectTeam: %v", err)
	}
	if err := alice.LoadTeams(ctx); err != nil {
		t.Fatalf("LoadTeams: %v", err)
	}
	if got := alice.CurrentTeamID(); got != "" {
		t.Fatalf("current team re-defaulted to %q", got)
	}
	if _, ok := alice.CurrentTeam(); ok {
		t.Fatal("CurrentTeam reports a selection after clearing")
	}
}

func TestMembersFollowFeed(t *testing.T) {
	store := openStore(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice := newSynchronizer(t, client(store, "alice"))
	team, err := alice.CreateTeam(ctx, "Alpha", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	// A second session adds carol; alice's view converges from the feed.
	bob := newSynchronizer(t, client(store, "bob"))
	if _, err := bob.AddMember(ctx, team.ID, "carol", planner.RoleMember); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		members := alice.Members()
		return len(members) == 2 && members[1].Profile.FullName == "Carol"
	}, "alice sees carol join")

	if err := bob.RemoveMember(ctx, team.ID, "carol"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		return len(alice.Members()) == 1
	}, "alice sees carol leave")
}

func TestTeamListFollowsOwnMemberships(t *testing.T) {
	store := openStore(t, "alice", "bob")
	ctx := context.Background()
	alice := newSynchronizer(t, client(store, "alice"))
	bob := newSynchronizer(t, client(store, "bob"))
	if err := bob.LoadTeams(ctx); err != nil {
		t.Fatalf("LoadTeams: %v", err)
	}
	if len(bob.Teams()) != 0 {
		t.Fatalf("bob starts with %d teams", len(bob.Teams()))
	}

	team, err := alice.CreateTeam(ctx, "Alpha", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := alice.InviteMember(ctx, team.ID, "bob@teamflow.test"); err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	testutil.Eventually(t, convergeTimeout, func() bool {
		teams := bob.Teams()
		return len(teams) == 1 && teams[0].Row.ID == team.ID
	}, "bob's team list gains Alpha")
}

func TestDeleteTeam(t *testing.T) {
	store := openStore(t, "alice", "bob")
	ctx := context.Background()
	alice := newSynchronizer(t, client(store, "alice"))
	team, err := alice.CreateTeam(ctx, "Doomed", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := alice.InviteMember(ctx, team.ID, "bob@teamflow.test"); err != nil {
		t.Fatalf("InviteMember: %v", err)
	}

	if err := alice.DeleteTeam(ctx, team.ID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	if got := memberships(t, store, team.ID); len(got) != 0 {
		t.Fatalf("%d memberships survive the team", len(got))
	}
	if len(alice.Teams()) != 0 || alice.CurrentTeamID() != "" {
		t.Fatalf("teams = %d, current = %q after delete", len(alice.Teams()), alice.CurrentTeamID())
	}
}

func TestDeleteTeamFailureKeepsOwnerMembership(t *testing.T) {
	store := openStore(t, "alice")
	ctx := context.Background()
	data := &faultyData{DataService: client(store, "alice")}
	alice := newSynchronizer(t, data)
	team, err := alice.CreateTeam(ctx, "Sturdy", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	data.failDelete = datastore.TableTeams
	if err := alice.DeleteTeam(ctx, team.ID); !errors.Is(err, errInjected) {
		t.Fatalf("DeleteTeam = %v, want the team delete failure", err)
	}
	if count := teamCount(t, store); count != 1 {
		t.Fatalf("%d teams after failed delete, want 1", count)
	}
	members := memberships(t, store, team.ID)
	if len(members) != 1 || members[0].Role != planner.RoleOwner || members[0].UserID != "alice" {
		t.Fatalf("memberships after failed delete = %+v, want alice as owner", members)
	}
}

func TestDeleteTeamMembershipFailureLeavesNoTeam(t *testing.T) {
	store := openStore(t, "alice")
	ctx := context.Background()
	data := &faultyData{DataService: client(store, "alice")}
	alice := newSynchronizer(t, data)
	team, err := alice.CreateTeam(ctx, "Halfway", "")
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	data.failDeleteWhere = datastore.TableTeamMembers
	if err := alice.DeleteTeam(ctx, team.ID); !errors.Is(err, errInjected) {
		t.Fatalf("DeleteTeam = %v, want the membership delete failure", err)
	}
	if count := teamCount(t, store); count != 0 {
		t.Fatalf("%d teams after delete, want 0", count)
	}
}
