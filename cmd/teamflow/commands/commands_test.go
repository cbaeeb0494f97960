// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/identity"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/tasksearch"
	"github.com/bureau-foundation/teamflow/lib/teamsync"
)

// user runs commands as one person: its own config file and session
// file over a store shared with the other users of the test.
type user struct {
	t          *testing.T
	email      string
	configPath string
	password   string
	stdout     bytes.Buffer
}

func newUsers(t *testing.T, emails ...string) []*user {
	t.Helper()
	root := t.TempDir()
	password := filepath.Join(root, "password")
	if err := os.WriteFile(password, []byte("correct horse\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var users []*user
	for index, email := range emails {
		configPath := filepath.Join(root, fmt.Sprintf("user%d.yaml", index))
		config := fmt.Sprintf(`paths:
  root: %s
session:
  file: %s
log:
  level: error
`, root, filepath.Join(root, fmt.Sprintf("session-%d", index)))
		if err := os.WriteFile(configPath, []byte(config), 0o600); err != nil {
			t.Fatal(err)
		}
		users = append(users, &user{t: t, email: email, configPath: configPath, password: password})
	}
	return users
}

// run executes a data command with --config appended and returns its
// stdout.
func (u *user) run(args ...string) (string, error) {
	u.t.Helper()
	u.stdout.Reset()
	env := &environment{
		ctx:    u.t.Context(),
		stdout: &u.stdout,
		argon2: identity.Argon2Params{Time: 1, Memory: 64, Threads: 1},
		clock:  clock.Real(),
	}
	err := root(env).Execute(append(args, "--config", u.configPath))
	return u.stdout.String(), err
}

func (u *user) must(args ...string) string {
	u.t.Helper()
	output, err := u.run(args...)
	if err != nil {
		u.t.Fatalf("teamflow %s: %v", strings.Join(args, " "), err)
	}
	return output
}

func (u *user) signup() {
	u.t.Helper()
	u.must("signup", u.email, "--password-file", u.password)
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

func TestSignupWhoamiLogout(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]

	output := alice.must("signup", "Alice@Example.com", "--name", "Alice Liddell", "--password-file", alice.password)
	if !strings.Contains(output, "Signed up as alice@example.com") {
		t.Errorf("signup output = %q", output)
	}

	output = alice.must("whoami")
	if !strings.Contains(output, "Alice Liddell <alice@example.com>") {
		t.Errorf("whoami output = %q", output)
	}
	profile := decode[planner.Profile](t, alice.must("whoami", "--json"))
	if profile.Email != "alice@example.com" || profile.ID == "" {
		t.Errorf("whoami --json = %+v", profile)
	}

	if output := alice.must("logout"); !strings.Contains(output, "Signed out") {
		t.Errorf("logout output = %q", output)
	}
	_, err := alice.run("whoami")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("whoami after logout error = %v, want exit code 1", err)
	}
	if output := alice.must("logout"); !strings.Contains(output, "Not signed in") {
		t.Errorf("second logout output = %q", output)
	}

	if output := alice.must("login", "alice@example.com", "--password-file", alice.password); !strings.Contains(output, "Signed in as alice@example.com") {
		t.Errorf("login output = %q", output)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := newUsers(t, "alice@example.com")
	alice := users[0]
	alice.signup()

	wrong := filepath.Join(t.TempDir(), "wrong")
	if err := os.WriteFile(wrong, []byte("not the password"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.run("login", alice.email, "--password-file", wrong); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
}

func TestCommandsRequireSession(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	if _, err := alice.run("tasks", "list"); !errors.Is(err, cli.ErrNoSession) {
		t.Fatalf("tasks list without session error = %v, want ErrNoSession", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()

	created := decode[planner.Task](t, alice.must("tasks", "create", "Write", "release", "notes",
		"--priority", "high", "--deadline", "2030-01-02T15:00:00Z", "--description", "Cover the **new** sync layer", "--json"))
	if created.Title != "Write release notes" || created.Priority != planner.PriorityHigh || created.Status != planner.StatusTodo {
		t.Fatalf("created = %+v", created)
	}
	if !created.IsPrivate || created.TeamID != nil {
		t.Errorf("task without team is not private: %+v", created)
	}

	shortID := created.ID[:8]
	alice.must("tasks", "update", shortID, "--status", "in_progress", "--title", "Write the notes")

	tasks := decode[[]planner.Task](t, alice.must("tasks", "list", "--json"))
	if len(tasks) != 1 || tasks[0].Status != planner.StatusInProgress || tasks[0].Title != "Write the notes" {
		t.Fatalf("after update = %+v", tasks)
	}

	urgent := decode[[]planner.Task](t, alice.must("tasks", "list", "--filter", "urgent", "--json"))
	if len(urgent) != 0 {
		t.Errorf("urgent filter returned %d tasks", len(urgent))
	}

	shown := alice.must("tasks", "show", shortID)
	for _, want := range []string{"Write the notes", "In Progress", "new", "no comments"} {
		if !strings.Contains(shown, want) {
			t.Errorf("show output missing %q:\n%s", want, shown)
		}
	}

	if _, err := alice.run("tasks", "update", shortID); err == nil || !strings.Contains(err.Error(), "nothing to update") {
		t.Errorf("update without flags error = %v", err)
	}

	alice.must("tasks", "delete", shortID)
	if tasks := decode[[]planner.Task](t, alice.must("tasks", "list", "--json")); len(tasks) != 0 {
		t.Errorf("after delete = %+v", tasks)
	}
	if _, err := alice.run("tasks", "delete", shortID); err == nil {
		t.Error("deleting a task that is gone succeeded")
	}
}

func TestTaskSearch(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()
	alice.must("tasks", "create", "Fix", "login", "redirect")
	alice.must("tasks", "create", "Release", "notes", "--description", "Mention the login fix")
	alice.must("tasks", "create", "Billing", "export")

	hits := decode[[]tasksearch.Hit](t, alice.must("tasks", "search", "login", "--json"))
	if len(hits) != 2 || hits[0].Task.Title != "Fix login redirect" {
		t.Fatalf("search login = %+v", hits)
	}
	if out := alice.must("tasks", "search", "kubernetes"); !strings.Contains(out, "No matching tasks") {
		t.Errorf("search without hits printed %q", out)
	}
	if _, err := alice.run("tasks", "search"); err == nil {
		t.Error("search without a query succeeded")
	}
}

func TestTeamSharing(t *testing.T) {
	users := newUsers(t, "alice@example.com", "bob@example.com")
	alice, bob := users[0], users[1]
	alice.signup()
	bob.signup()

	alice.must("teams", "create", "Platform", "--description", "infra")
	alice.must("teams", "invite", "platform", "bob@example.com")
	if _, err := alice.run("teams", "invite", "Platform", "bob@example.com"); !errors.Is(err, teamsync.ErrAlreadyMember) {
		t.Errorf("second invite error = %v, want ErrAlreadyMember", err)
	}

	shared := decode[planner.Task](t, alice.must("tasks", "create", "Rotate", "keys", "--team", "Platform", "--json"))
	if shared.IsPrivate || shared.TeamID == nil {
		t.Fatalf("team task = %+v", shared)
	}
	alice.must("tasks", "create", "Private", "errand")

	visible := decode[[]planner.Task](t, bob.must("tasks", "list", "--json"))
	if len(visible) != 1 || visible[0].ID != shared.ID {
		t.Fatalf("bob sees %+v, want only the team task", visible)
	}

	members := decode[[]teamsync.Member](t, bob.must("teams", "members", "Platform", "--json"))
	if len(members) != 2 || members[0].Row.Role != planner.RoleOwner || members[1].Profile.Email != "bob@example.com" {
		t.Fatalf("members = %+v", members)
	}

	if _, err := bob.run("teams", "remove", "Platform", "alice@example.com"); !errors.Is(err, errOwnerRemoval) {
		t.Errorf("removing the owner error = %v, want errOwnerRemoval", err)
	}
	if _, err := bob.run("teams", "delete", "Platform"); err == nil {
		t.Error("non-owner deleted the team")
	}

	alice.must("teams", "remove", "Platform", "bob@example.com")
	if visible := decode[[]planner.Task](t, bob.must("tasks", "list", "--json")); len(visible) != 0 {
		t.Errorf("bob still sees %+v after removal", visible)
	}

	alice.must("teams", "delete", "Platform")
	if teams := decode[[]teamsync.Team](t, alice.must("teams", "list", "--json")); len(teams) != 0 {
		t.Errorf("teams after delete = %+v", teams)
	}
}

func TestCommentCommands(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()
	task := decode[planner.Task](t, alice.must("tasks", "create", "Review", "--json"))

	alice.must("comments", "add", task.ID[:8], "Looks", "good")
	thread := decode[[]struct {
		Row planner.Comment `json:"row"`
	}](t, alice.must("comments", "list", task.ID, "--json"))
	if len(thread) != 1 || thread[0].Row.Content != "Looks good" {
		t.Fatalf("thread = %+v", thread)
	}

	if output := alice.must("comments", "list", task.ID); !strings.Contains(output, "Looks good") {
		t.Errorf("comments list output = %q", output)
	}

	alice.must("comments", "delete", task.ID, thread[0].Row.ID[:8])
	if output := alice.must("comments", "list", task.ID); !strings.Contains(output, "no comments") {
		t.Errorf("after delete = %q", output)
	}
}

func TestImportDrafts(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()

	path := filepath.Join(t.TempDir(), "drafts.jsonc")
	drafts := `[
  // carried over from the planning doc
  {"title": "Draft agenda", "priority": "URGENT"},
  {"title": "Book room", "status": "in_progress",},
]`
	if err := os.WriteFile(path, []byte(drafts), 0o600); err != nil {
		t.Fatal(err)
	}
	if output := alice.must("tasks", "import", path); !strings.Contains(output, "Imported 2 task(s)") {
		t.Errorf("import output = %q", output)
	}

	urgent := decode[[]planner.Task](t, alice.must("tasks", "list", "--filter", "urgent", "--json"))
	if len(urgent) != 1 || urgent[0].Title != "Draft agenda" {
		t.Errorf("urgent = %+v", urgent)
	}
	inProgress := decode[[]planner.Task](t, alice.must("tasks", "list", "--status", "in-progress", "--json"))
	if len(inProgress) != 1 || inProgress[0].Title != "Book room" {
		t.Errorf("in progress = %+v", inProgress)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()
	task := decode[planner.Task](t, alice.must("tasks", "create", "Keep", "me", "--json"))

	path := filepath.Join(t.TempDir(), "backup.tfsnap")
	if output := alice.must("snapshot", "export", path, "--compression", "lz4"); !strings.Contains(output, "tasks 1") {
		t.Errorf("export output = %q", output)
	}

	alice.must("tasks", "delete", task.ID)
	alice.must("snapshot", "import", path)

	tasks := decode[[]planner.Task](t, alice.must("tasks", "list", "--json"))
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("after import = %+v", tasks)
	}

	if _, err := alice.run("snapshot", "export", path, "--compression", "gzip"); err == nil {
		t.Error("unknown compression accepted")
	}
}

func TestPresenceCommands(t *testing.T) {
	alice := newUsers(t, "alice@example.com")[0]
	alice.signup()

	alice.must("presence", "beat", "--once")
	if output := alice.must("presence", "online"); !strings.Contains(output, "alice@example.com") {
		t.Errorf("online output = %q", output)
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	env := &environment{ctx: t.Context(), stdout: &stdout, clock: clock.Real()}
	if err := root(env).Execute([]string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "teamflow ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestParseDeadline(t *testing.T) {
	if got, err := parseDeadline(""); err != nil || got != "" {
		t.Errorf("parseDeadline(\"\") = %q, %v", got, err)
	}
	got, err := parseDeadline("2026-11-02T17:30:00+02:00")
	if err != nil || got != "2026-11-02T15:30:00Z" {
		t.Errorf("parseDeadline(RFC 3339) = %q, %v", got, err)
	}
	got, err = parseDeadline("2026-11-02")
	if err != nil {
		t.Fatalf("parseDeadline(date): %v", err)
	}
	want := time.Date(2026, 11, 2, 0, 0, 0, 0, time.Local).UTC().Format(time.RFC3339)
	if got != want {
		t.Errorf("parseDeadline(date) = %q, want %q", got, want)
	}
	if _, err := parseDeadline("next tuesday"); err == nil {
		t.Error("parseDeadline accepted free text")
	}
}
