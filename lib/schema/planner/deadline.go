// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"fmt"
	"math"
	"time"
)

// DeadlineLabel renders a deadline relative to now: "2d overdue",
// "Today", "Tomorrow", "5d left", or a short date beyond a week. Nil
// or unparseable deadlines render as "".
func DeadlineLabel(deadline *string, now time.Time) string {
	if deadline == nil {
		return ""
	}
	when, err := time.Parse(time.RFC3339, *deadline)
	if err != nil {
		return ""
	}
	days := int(math.Ceil(when.Sub(now).Hours() / 24))
	switch {
	case days < 0:
		return fmt.Sprintf("%dd overdue", -days)
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days <= 7:
		return fmt.Sprintf("%dd left", days)
	}
	return when.Format("Jan 2")
}
