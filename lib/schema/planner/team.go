// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import "fmt"

// Role is a member's standing in a team.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Team groups members and team-scoped tasks. The owner always holds a
// membership with role owner.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TeamMember links a user to a team. At most one row exists per
// (team, user) pair.
type TeamMember struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// CheckOwnership verifies that members contains exactly one owner row
// and that it belongs to team.OwnerID.
func CheckOwnership(team Team, members []TeamMember) error {
	var owners []TeamMember
	for _, member := range members {
		if member.TeamID == team.ID && member.Role == RoleOwner {
			owners = append(owners, member)
		}
	}
	switch {
	case len(owners) == 0:
		return fmt.Errorf("team %s has no owner membership", team.ID)
	case len(owners) > 1:
		return fmt.Errorf("team %s has %d owner memberships", team.ID, len(owners))
	case owners[0].UserID != team.OwnerID:
		return fmt.Errorf("team %s owner membership belongs to %s, team owner is %s",
			team.ID, owners[0].UserID, team.OwnerID)
	}
	return nil
}
