// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Theme is the color palette. All colors are ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	LinkForeground   lipgloss.Color

	// Indexed in planner.Priorities order: low, medium, high, urgent.
	PriorityColors [4]lipgloss.Color

	// Indexed in planner.Statuses order: todo, in-progress, review, done.
	StatusColors [4]lipgloss.Color

	Overdue lipgloss.Color
	Online  lipgloss.Color
}

// PriorityColor returns the color for p, or NormalText when unknown.
func (theme Theme) PriorityColor(p planner.Priority) lipgloss.Color {
	for index, priority := range planner.Priorities() {
		if priority == p {
			return theme.PriorityColors[index]
		}
	}
	return theme.NormalText
}

// StatusColor returns the color for s, or FaintText when unknown.
func (theme Theme) StatusColor(s planner.Status) lipgloss.Color {
	for index, status := range planner.Statuses() {
		if status == s {
			return theme.StatusColors[index]
		}
	}
	return theme.FaintText
}

// DefaultTheme suits a 256-color terminal with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	LinkForeground:   lipgloss.Color("75"),

	PriorityColors: [4]lipgloss.Color{
		lipgloss.Color("245"), // low: gray
		lipgloss.Color("75"),  // medium: blue
		lipgloss.Color("208"), // high: orange
		lipgloss.Color("196"), // urgent: bright red
	},

	StatusColors: [4]lipgloss.Color{
		lipgloss.Color("250"), // todo: slate
		lipgloss.Color("75"),  // in progress: blue
		lipgloss.Color("220"), // review: amber
		lipgloss.Color("114"), // done: green
	},

	Overdue: lipgloss.Color("196"),
	Online:  lipgloss.Color("114"),
}
