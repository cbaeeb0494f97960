// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package teamsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// CreateTeam creates a team owned by the caller together with the
// owner membership, then reloads the team list. The name is trimmed
// and must not be empty.
func (s *Synchronizer) CreateTeam(ctx context.Context, name, description string) (planner.Team, error) {
	caller, ok := s.data.Caller()
	if !ok {
		return planner.Team{}, &syncer.InsertError{Collection: datastore.TableTeams, Err: datastore.ErrAuthRequired}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return planner.Team{}, &syncer.InsertError{
			Collection: datastore.TableTeams,
			Err:        &datastore.Error{Code: datastore.CodeInvalid, Table: datastore.TableTeams, Message: "team name is required"},
		}
	}

	payload, err := s.data.Insert(ctx, datastore.TableTeams, planner.Team{
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     caller,
	})
	if err != nil {
		return planner.Team{}, &syncer.InsertError{Collection: datastore.TableTeams, Err: err}
	}
	team, err := datastore.Decode[planner.Team](payload)
	if err != nil {
		return planner.Team{}, &syncer.InsertError{Collection: datastore.TableTeams, Err: err}
	}

	_, err = s.data.Insert(ctx, datastore.TableTeamMembers, planner.TeamMember{
		TeamID: team.ID,
		UserID: caller,
		Role:   planner.RoleOwner,
	})
	if err != nil {
		memberErr := fmt.Errorf("adding owner membership: %w", err)
		if cleanupErr := s.data.Delete(ctx, datastore.TableTeams, team.ID); cleanupErr != nil {
			s.logger.Error("orphaned team left without owner membership",
				"team_id", team.ID, "error", err, "cleanup_error", cleanupErr)
			memberErr = errors.Join(memberErr, fmt.Errorf("removing team %s: %w", team.ID, cleanupErr))
		}
		return planner.Team{}, &syncer.InsertError{Collection: datastore.TableTeamMembers, Err: memberErr}
	}

	s.logger.Info("team created", "team_id", team.ID, "name", team.Name)
	if err := s.LoadTeams(ctx); err != nil {
		s.logger.Warn("team reload after create failed", "team_id", team.ID, "error", err)
	}
	return team, nil
}

// InviteMember adds the user registered under email to teamID with
// role member. It fails with ErrUserNotFound for an unknown email and
// ErrAlreadyMember when the user already belongs to the team.
func (s *Synchronizer) InviteMember(ctx context.Context, teamID, email string) (planner.TeamMember, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	rows, err := s.data.Select(ctx, datastore.From(datastore.TableProfiles).
		Filter(datastore.Eq("email", normalized)).
		Sort(datastore.Asc("created_at")))
	if err != nil {
		return planner.TeamMember{}, &syncer.FetchError{Collection: datastore.TableProfiles, Err: err}
	}
	if len(rows) == 0 {
		return planner.TeamMember{}, fmt.Errorf("inviting %s: %w", normalized, ErrUserNotFound)
	}
	profile, err := datastore.Decode[planner.Profile](rows[0])
	if err != nil {
		return planner.TeamMember{}, &syncer.FetchError{Collection: datastore.TableProfiles, Err: err}
	}

	rows, err = s.data.Select(ctx, datastore.From(datastore.TableTeamMembers).
		Filter(datastore.Eq("team_id", teamID), datastore.Eq("user_id", profile.ID)).
		Sort(datastore.Asc("joined_at")))
	if err != nil {
		return planner.TeamMember{}, &syncer.FetchError{Collection: datastore.TableTeamMembers, Err: err}
	}
	if len(rows) > 0 {
		return planner.TeamMember{}, fmt.Errorf("inviting %s to team %s: %w", normalized, teamID, ErrAlreadyMember)
	}

	return s.AddMember(ctx, teamID, profile.ID, planner.RoleMember)
}

// AddMember inserts a membership for userID. A concurrent duplicate
// surfaces as ErrAlreadyMember.
func (s *Synchronizer) AddMember(ctx context.Context, teamID, userID string, role planner.Role) (planner.TeamMember, error) {
	if !role.Valid() {
		return planner.TeamMember{}, &syncer.InsertError{
			Collection: datastore.TableTeamMembers,
			Err:        &datastore.Error{Code: datastore.CodeInvalid, Table: datastore.TableTeamMembers, Message: fmt.Sprintf("unknown role %q", role)},
		}
	}
	payload, err := s.data.Insert(ctx, datastore.TableTeamMembers, planner.TeamMember{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
	})
	if errors.Is(err, datastore.ErrConflict) {
		return planner.TeamMember{}, fmt.Errorf("adding %s to team %s: %w", userID, teamID, ErrAlreadyMember)
	}
	if err != nil {
		return planner.TeamMember{}, &syncer.InsertError{Collection: datastore.TableTeamMembers, Err: err}
	}
	member, err := datastore.Decode[planner.TeamMember](payload)
	if err != nil {
		return planner.TeamMember{}, &syncer.InsertError{Collection: datastore.TableTeamMembers, Err: err}
	}

	s.logger.Info("member added", "team_id", teamID, "user_id", userID, "role", role)
	if err := s.reloadCurrentMembers(ctx, teamID); err != nil {
		s.logger.Warn("member reload failed", "team_id", teamID, "error", err)
	}
	return member, nil
}

// RemoveMember deletes userID's membership in teamID. It does not
// protect the owner; callers must refuse to remove the team's owner.
func (s *Synchronizer) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := s.data.DeleteWhere(ctx, datastore.TableTeamMembers,
		datastore.Eq("team_id", teamID), datastore.Eq("user_id", userID))
	if err != nil {
		return &syncer.WriteError{Collection: datastore.TableTeamMembers, Op: "delete", ID: teamID + "/" + userID, Err: err}
	}
	if err := s.reloadCurrentMembers(ctx, teamID); err != nil {
		s.logger.Warn("member reload failed", "team_id", teamID, "error", err)
	}
	return nil
}

// DeleteTeam removes the team and then its memberships, clears the
// selection if it was current, and reloads the team list. A failed
// team delete leaves the memberships, owner included, untouched.
func (s *Synchronizer) DeleteTeam(ctx context.Context, teamID string) error {
	if err := s.data.Delete(ctx, datastore.TableTeams, teamID); err != nil {
		return &syncer.WriteError{Collection: datastore.TableTeams, Op: "delete", ID: teamID, Err: err}
	}
	s.logger.Info("team deleted", "team_id", teamID)
	if _, err := s.data.DeleteWhere(ctx, datastore.TableTeamMembers, datastore.Eq("team_id", teamID)); err != nil {
		s.logger.Error("memberships left behind by deleted team", "team_id", teamID, "error", err)
		return &syncer.WriteError{Collection: datastore.TableTeamMembers, Op: "delete", ID: teamID, Err: err}
	}

	if s.CurrentTeamID() == teamID {
		if err := s.SelectTeam(ctx, ""); err != nil {
			return err
		}
	}
	if err := s.LoadTeams(ctx); err != nil {
		s.logger.Warn("team reload after delete failed", "team_id", teamID, "error", err)
	}
	return nil
}
