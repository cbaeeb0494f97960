// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/teamflow/lib/commentsync"
	"github.com/bureau-foundation/teamflow/lib/presence"
	"github.com/bureau-foundation/teamflow/lib/render"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func plain(t *testing.T, width int) *render.Renderer {
	t.Helper()
	return render.New(&bytes.Buffer{}, render.Options{Width: width, Profile: termenv.Ascii})
}

func task(id, title string, status planner.Status, priority planner.Priority) planner.Task {
	return planner.Task{ID: id, Title: title, Status: status, Priority: priority, IsPrivate: true}
}

func TestBoardGroupsByStatus(t *testing.T) {
	overdue := now.Add(-48 * time.Hour).Format(time.RFC3339)
	tasks := []planner.Task{
		task("11111111-aaaa", "Write brief", planner.StatusTodo, planner.PriorityHigh),
		task("22222222-bbbb", "Review PR", planner.StatusReview, planner.PriorityUrgent),
		task("33333333-cccc", "Ship", planner.StatusDone, planner.PriorityLow),
	}
	tasks[1].Deadline = &overdue

	board := plain(t, 120).Board(tasks, now)
	for _, want := range []string{"To Do (1)", "In Progress (0)", "Review (1)", "Done (1)", "Write brief", "2d overdue", "no tasks"} {
		if !strings.Contains(board, want) {
			t.Errorf("board missing %q:\n%s", want, board)
		}
	}

	// Columns are laid out left to right in workflow order.
	header := strings.Split(board, "\n")[0]
	if !(strings.Index(header, "To Do") < strings.Index(header, "In Progress") &&
		strings.Index(header, "In Progress") < strings.Index(header, "Review") &&
		strings.Index(header, "Review") < strings.Index(header, "Done")) {
		t.Errorf("column order wrong: %q", header)
	}
}

func TestBoardPlainProfileHasNoEscapes(t *testing.T) {
	board := plain(t, 100).Board([]planner.Task{task("1", "Plain", planner.StatusTodo, planner.PriorityMedium)}, now)
	if board != ansi.Strip(board) {
		t.Error("Ascii profile output contains escape sequences")
	}
}

func TestTaskList(t *testing.T) {
	tomorrow := now.Add(20 * time.Hour).Format(time.RFC3339)
	tasks := []planner.Task{task("0123456789abcdef", "Prepare demo", planner.StatusInProgress, planner.PriorityUrgent)}
	tasks[0].Deadline = &tomorrow

	list := plain(t, 120).TaskList(tasks, now)
	for _, want := range []string{"01234567", "In Progress", "Urgent", "Prepare demo", "Tomorrow"} {
		if !strings.Contains(list, want) {
			t.Errorf("list missing %q: %q", want, list)
		}
	}
	if strings.Contains(list, "89abcdef") {
		t.Errorf("list shows the full id: %q", list)
	}
	if got := plain(t, 80).TaskList(nil, now); got != "no tasks" {
		t.Errorf("empty list = %q", got)
	}
}

func TestOnline(t *testing.T) {
	users := []presence.User{
		{
			Row:     planner.Presence{UserID: "alice", LastSeen: now.Add(-20 * time.Second).Format(time.RFC3339)},
			Profile: planner.Profile{ID: "alice", FullName: "Alice Liddell"},
		},
		{
			Row:     planner.Presence{UserID: "bob", LastSeen: now.Add(-3 * time.Minute).Format(time.RFC3339)},
			Profile: planner.Profile{ID: "bob", Email: "bob@teamflow.test"},
		},
	}
	out := plain(t, 80).Online(users, now)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "AL") || !strings.Contains(lines[0], "Alice Liddell") || !strings.Contains(lines[0], "20s ago") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "BO") || !strings.Contains(lines[1], "bob@teamflow.test") || !strings.Contains(lines[1], "3m ago") {
		t.Errorf("second line = %q", lines[1])
	}
	if got := plain(t, 80).Online(nil, now); got != "nobody online" {
		t.Errorf("empty online = %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	input := "Looks **good**, see [the doc](https://example.com/doc).\n\n" +
		"Wrapped source\nline reflows.\n\n" +
		"- first\n- second\n\n" +
		"```go\nfmt.Println(\"hi\")\n```\n"
	out := plain(t, 80).Markdown(input, 80)

	for _, want := range []string{
		"Looks good, see the doc (https://example.com/doc).",
		"Wrapped source line reflows.",
		"- first\n- second",
		`fmt.Println("hi")`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "**") || strings.Contains(out, "```") {
		t.Errorf("markdown syntax leaked:\n%s", out)
	}
}

func TestMarkdownWraps(t *testing.T) {
	out := plain(t, 80).Markdown(strings.Repeat("word ", 20), 30)
	for _, line := range strings.Split(out, "\n") {
		if ansi.StringWidth(line) > 30 {
			t.Errorf("line wider than 30: %q", line)
		}
	}
}

func TestComments(t *testing.T) {
	comments := []commentsync.Comment{
		{
			Row:     planner.Comment{ID: "abcdef0123", UserID: "alice", Content: "hi *there*", CreatedAt: "2026-03-01T09:00:00.000Z"},
			Profile: planner.Profile{ID: "alice", FullName: "Alice"},
		},
		{
			Row: planner.Comment{ID: "fedcba9876", UserID: "ghost", Content: "anyone?", CreatedAt: "2026-03-01T09:01:00.000Z"},
		},
	}
	out := plain(t, 80).Comments(comments)
	for _, want := range []string{"Alice", "abcdef01", "  hi there", "ghost", "  anyone?"} {
		if !strings.Contains(out, want) {
			t.Errorf("comments missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "hi there") > strings.Index(out, "anyone?") {
		t.Error("comments out of order")
	}
}
