// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"strings"
	"time"

	"github.com/bureau-foundation/teamflow/lib/commentsync"
)

// Comments renders a thread oldest first: an author line with the
// comment's short id and time, then the markdown body indented under
// it.
func (r *Renderer) Comments(comments []commentsync.Comment) string {
	if len(comments) == 0 {
		return r.faint("no comments")
	}
	var blocks []string
	for _, comment := range comments {
		name := comment.Profile.DisplayName()
		if name == "" {
			name = comment.Row.UserID
		}
		author := r.style().Bold(true).Foreground(r.theme.HeaderForeground).Render(name)
		when := comment.Row.CreatedAt
		if parsed, err := time.Parse(time.RFC3339, when); err == nil {
			when = parsed.Local().Format("2006-01-02 15:04")
		}
		header := author + "  " + r.faint(ShortID(comment.Row.ID)+" · "+when)

		body := r.Markdown(comment.Row.Content, r.width-2)
		var indented []string
		for _, line := range strings.Split(body, "\n") {
			indented = append(indented, "  "+line)
		}
		blocks = append(blocks, header+"\n"+strings.Join(indented, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
