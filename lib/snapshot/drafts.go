// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/tasksync"
)

// ReadDrafts parses a JSON array of task drafts. Comments and trailing
// commas are allowed. Statuses and priorities are normalized the way
// the CLI flags are, so "in_progress" and "URGENT" are accepted.
//
//	[
//	  // carried over from the kickoff
//	  {"title": "Draft agenda", "priority": "high"},
//	  {"title": "Book room", "deadline": "2026-03-02T09:00:00Z",},
//	]
func ReadDrafts(data []byte) ([]tasksync.Draft, error) {
	var drafts []tasksync.Draft
	if err := json.Unmarshal(jsonc.ToJSON(data), &drafts); err != nil {
		return nil, fmt.Errorf("parsing task drafts: %w", err)
	}
	for i := range drafts {
		draft := &drafts[i]
		if strings.TrimSpace(string(draft.Priority)) != "" {
			priority, err := planner.ParsePriority(string(draft.Priority))
			if err != nil {
				return nil, fmt.Errorf("draft %d: %w", i+1, err)
			}
			draft.Priority = priority
		}
		if strings.TrimSpace(string(draft.Status)) != "" {
			status, err := planner.ParseStatus(string(draft.Status))
			if err != nil {
				return nil, fmt.Errorf("draft %d: %w", i+1, err)
			}
			draft.Status = status
		}
	}
	return drafts, nil
}
