// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/teamflow/lib/presence"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Online lists online users, most recent first, with how long ago
// each was last seen.
func (r *Renderer) Online(users []presence.User, now time.Time) string {
	if len(users) == 0 {
		return r.faint("nobody online")
	}
	dot := r.style().Foreground(r.theme.Online).Render("●")
	var lines []string
	for _, user := range users {
		initials := r.style().Bold(true).Width(3).
			Render(planner.Initials(user.Profile.FullName, user.Profile.Email))
		line := fmt.Sprintf("%s %s %s", dot, initials, user.Profile.DisplayName())
		if seen, err := time.Parse(time.RFC3339, user.Row.LastSeen); err == nil {
			line += "  " + r.faint("seen "+ago(now.Sub(seen)))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func ago(elapsed time.Duration) string {
	switch {
	case elapsed < 5*time.Second:
		return "just now"
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	}
}
