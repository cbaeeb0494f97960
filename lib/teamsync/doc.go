// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package teamsync tracks the caller's teams, the currently selected
// team, and that team's members.
//
// Team creation writes the team and then the owner membership. If the
// membership write fails the team row is deleted again, so a team is
// never left without its owner member; if that cleanup also fails,
// both errors are returned.
//
// Membership changes are reconciled coarsely: any team_members event
// for the current team re-fetches the member list, and any event for
// the caller's own memberships re-fetches the team list.
package teamsync
