// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Options configures a Renderer. Zero Width means 100 columns; a zero
// Theme means DefaultTheme.
type Options struct {
	Theme   Theme
	Width   int
	Profile termenv.Profile
}

// Renderer styles output for one terminal.
type Renderer struct {
	theme   Theme
	width   int
	profile termenv.Profile
	lip     *lipgloss.Renderer
}

// New returns a renderer writing styles for w with the given profile.
func New(w io.Writer, opts Options) *Renderer {
	theme := opts.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme
	}
	width := opts.Width
	if width <= 0 {
		width = 100
	}
	// The profile is set explicitly: lipgloss otherwise re-detects
	// from the environment and ignores the termenv option.
	lip := lipgloss.NewRenderer(w, termenv.WithProfile(opts.Profile))
	lip.SetColorProfile(opts.Profile)
	return &Renderer{theme: theme, width: width, profile: opts.Profile, lip: lip}
}

// Detect returns the color profile termenv finds for w.
func Detect(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w).EnvColorProfile()
}

func (r *Renderer) style() lipgloss.Style { return r.lip.NewStyle() }

func (r *Renderer) faint(s string) string {
	return r.style().Foreground(r.theme.FaintText).Render(s)
}

func (r *Renderer) colored() bool { return r.profile != termenv.Ascii }

// Width is the column budget output is wrapped and truncated to.
func (r *Renderer) Width() int { return r.width }
