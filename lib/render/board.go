// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// minColumnWidth keeps cards readable on narrow terminals; the board
// overflows rather than squeezing below it.
const minColumnWidth = 22

// Board lays tasks out in one column per status, in workflow order.
// Tasks keep their input order within a column.
func (r *Renderer) Board(tasks []planner.Task, now time.Time) string {
	statuses := planner.Statuses()
	gap := 1
	columnWidth := max(minColumnWidth, (r.width-gap*(len(statuses)-1))/len(statuses))

	columns := make([]string, 0, len(statuses))
	for _, status := range statuses {
		var cards []string
		for _, task := range tasks {
			if task.Status == status {
				cards = append(cards, r.card(task, now, columnWidth))
			}
		}
		header := r.style().
			Bold(true).
			Foreground(r.theme.StatusColor(status)).
			Width(columnWidth).
			Render(fmt.Sprintf("%s (%d)", status.Label(), len(cards)))
		if len(cards) == 0 {
			cards = append(cards, r.style().Width(columnWidth).Render(r.faint("  no tasks")))
		}
		columns = append(columns, lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, cards...)...))
		columns = append(columns, strings.Repeat(" ", gap))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns[:len(columns)-1]...)
}

func (r *Renderer) card(task planner.Task, now time.Time, width int) string {
	inner := width - 4 // border and padding
	title := r.style().Bold(true).Foreground(r.theme.NormalText).
		Render(ansi.Truncate(task.Title, inner, "…"))

	meta := []string{r.style().Foreground(r.theme.PriorityColor(task.Priority)).Render(task.Priority.Label())}
	if label := planner.DeadlineLabel(task.Deadline, now); label != "" {
		style := r.style().Foreground(r.theme.FaintText)
		if strings.HasSuffix(label, "overdue") {
			style = style.Foreground(r.theme.Overdue)
		}
		meta = append(meta, style.Render(label))
	}
	if task.TeamID == nil {
		meta = append(meta, r.faint("private"))
	}

	return r.style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.BorderColor).
		Padding(0, 1).
		Width(width - 2).
		Render(title + "\n" + ansi.Truncate(strings.Join(meta, " · "), inner, "…"))
}

// TaskList renders one line per task: short id, status, priority,
// title, and deadline.
func (r *Renderer) TaskList(tasks []planner.Task, now time.Time) string {
	if len(tasks) == 0 {
		return r.faint("no tasks")
	}
	var lines []string
	for _, task := range tasks {
		status := r.style().Foreground(r.theme.StatusColor(task.Status)).Width(12).Render(task.Status.Label())
		priority := r.style().Foreground(r.theme.PriorityColor(task.Priority)).Width(7).Render(task.Priority.Label())
		line := fmt.Sprintf("%s  %s %s %s", r.faint(ShortID(task.ID)), status, priority, task.Title)
		if label := planner.DeadlineLabel(task.Deadline, now); label != "" {
			line += "  " + r.faint(label)
		}
		lines = append(lines, ansi.Truncate(line, r.width, "…"))
	}
	return strings.Join(lines, "\n")
}

// ShortID is the first eight characters of a UUID, enough to pick a
// row out of a listing.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
