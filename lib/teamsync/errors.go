// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package teamsync

import "github.com/bureau-foundation/teamflow/lib/datastore"

var (
	// ErrAlreadyMember is returned when inviting or adding a user who
	// already belongs to the team. It matches datastore.ErrConflict.
	ErrAlreadyMember = &datastore.Error{
		Code:    datastore.CodeConflict,
		Table:   datastore.TableTeamMembers,
		Message: "user is already a member of this team",
	}

	// ErrUserNotFound is returned when an invitation names an email
	// with no profile. It matches datastore.ErrNotFound.
	ErrUserNotFound = &datastore.Error{
		Code:    datastore.CodeNotFound,
		Table:   datastore.TableProfiles,
		Message: "no user with that email",
	}
)
