// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/render"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/teamsync"
)

// errOwnerRemoval is returned when asked to remove a team's owner.
var errOwnerRemoval = errors.New("the team owner cannot be removed (delete the team instead)")

func teamsCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "teams",
		Summary: "Manage teams and their members",
		Description: `Manage the teams the signed-in user belongs to.

Team arguments accept a team ID, a unique ID prefix, or the team's
name.`,
		Subcommands: []*cli.Command{
			teamsListCommand(env),
			teamsCreateCommand(env),
			teamsMembersCommand(env),
			teamsInviteCommand(env),
			teamsRemoveCommand(env),
			teamsDeleteCommand(env),
		},
	}
}

// teamCommand builds the common shape of a team subcommand: global
// flags, an opened app with a resumed session, and a loaded team
// synchronizer.
func teamCommand(env *environment, name, summary, usage string, arguments int, output *cli.JSONOutput,
	run func(app *app, teams *teamsync.Synchronizer, userID string, args []string) error) *cli.Command {
	var global globalOptions
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			global.addFlags(flagSet)
			if output != nil {
				output.AddFlags(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, arguments, usage); err != nil {
				return err
			}
			app, err := env.open(&global, "teams/"+name)
			if err != nil {
				return err
			}
			defer app.Close()
			userID, err := app.resume()
			if err != nil {
				return err
			}

			teams := app.client.Teams()
			defer teams.Close()
			if err := teams.LoadTeams(env.ctx); err != nil {
				return err
			}
			return run(app, teams, userID, args)
		},
	}
}

func teamsListCommand(env *environment) *cli.Command {
	var output cli.JSONOutput
	return teamCommand(env, "list", "List your teams", "teamflow teams list [flags]", 0, &output,
		func(app *app, teams *teamsync.Synchronizer, userID string, _ []string) error {
			list := teams.Teams()
			if done, err := output.EmitJSON(app.env.stdout, list); done {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(app.env.stdout, "No teams")
				return nil
			}
			writer := tabwriter.NewWriter(app.env.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tOWNER\tDESCRIPTION")
			for _, team := range list {
				owner := team.Profile.DisplayName()
				if team.Row.OwnerID == userID {
					owner = "you"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", render.ShortID(team.Row.ID), team.Row.Name, owner, team.Row.Description)
			}
			return writer.Flush()
		})
}

func teamsCreateCommand(env *environment) *cli.Command {
	var (
		global      globalOptions
		description string
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Create a team you own",
		Usage:   "teamflow teams create <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVarP(&description, "description", "d", "", "team description")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("team name is required\n\nUsage: teamflow teams create <name> [flags]")
			}
			app, err := env.open(&global, "teams/create")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			teams := app.client.Teams()
			defer teams.Close()
			team, err := teams.CreateTeam(env.ctx, strings.Join(args, " "), description)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Created team %s %q\n", render.ShortID(team.ID), team.Name)
			return nil
		},
	}
}

func teamsMembersCommand(env *environment) *cli.Command {
	var output cli.JSONOutput
	return teamCommand(env, "members", "List a team's members", "teamflow teams members <team> [flags]", 1, &output,
		func(app *app, teams *teamsync.Synchronizer, _ string, args []string) error {
			team, err := findTeam(teams.Teams(), args[0])
			if err != nil {
				return err
			}
			if err := teams.SelectTeam(app.env.ctx, team.Row.ID); err != nil {
				return err
			}
			members := teams.Members()
			if err := checkOwnership(team.Row, members); err != nil {
				app.logger.Warn("team ownership inconsistent", "team_id", team.Row.ID, "error", err)
			}
			if done, err := output.EmitJSON(app.env.stdout, members); done {
				return err
			}
			writer := tabwriter.NewWriter(app.env.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "NAME\tEMAIL\tROLE\tJOINED")
			for _, member := range members {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					member.Profile.DisplayName(), member.Profile.Email, member.Row.Role, timestamp(member.Row.JoinedAt))
			}
			return writer.Flush()
		})
}

func teamsInviteCommand(env *environment) *cli.Command {
	return teamCommand(env, "invite", "Add a registered user to a team", "teamflow teams invite <team> <email> [flags]", 2, nil,
		func(app *app, teams *teamsync.Synchronizer, _ string, args []string) error {
			team, err := findTeam(teams.Teams(), args[0])
			if err != nil {
				return err
			}
			if _, err := teams.InviteMember(app.env.ctx, team.Row.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.env.stdout, "Added %s to %s\n", args[1], team.Row.Name)
			return nil
		})
}

func teamsRemoveCommand(env *environment) *cli.Command {
	return teamCommand(env, "remove", "Remove a member from a team", "teamflow teams remove <team> <user> [flags]", 2, nil,
		func(app *app, teams *teamsync.Synchronizer, _ string, args []string) error {
			team, err := findTeam(teams.Teams(), args[0])
			if err != nil {
				return err
			}
			userID, err := app.resolveUser(args[1])
			if err != nil {
				return err
			}
			if userID == team.Row.OwnerID {
				return errOwnerRemoval
			}
			if err := teams.RemoveMember(app.env.ctx, team.Row.ID, userID); err != nil {
				return err
			}
			fmt.Fprintf(app.env.stdout, "Removed %s from %s\n", args[1], team.Row.Name)
			return nil
		})
}

func teamsDeleteCommand(env *environment) *cli.Command {
	return teamCommand(env, "delete", "Delete a team and its memberships", "teamflow teams delete <team> [flags]", 1, nil,
		func(app *app, teams *teamsync.Synchronizer, userID string, args []string) error {
			team, err := findTeam(teams.Teams(), args[0])
			if err != nil {
				return err
			}
			if team.Row.OwnerID != userID {
				return fmt.Errorf("only the owner can delete team %s", team.Row.Name)
			}
			if err := teams.DeleteTeam(app.env.ctx, team.Row.ID); err != nil {
				return err
			}
			fmt.Fprintf(app.env.stdout, "Deleted team %s\n", team.Row.Name)
			return nil
		})
}

// resolveTeam finds one of the caller's teams.
func (a *app) resolveTeam(reference string) (teamsync.Team, error) {
	teams := a.client.Teams()
	defer teams.Close()
	if err := teams.LoadTeams(a.env.ctx); err != nil {
		return teamsync.Team{}, err
	}
	return findTeam(teams.Teams(), reference)
}

// findTeam matches an ID, then a case-insensitive name, then a unique
// ID prefix.
func findTeam(teams []teamsync.Team, reference string) (teamsync.Team, error) {
	for _, team := range teams {
		if team.Row.ID == reference {
			return team, nil
		}
	}
	for _, team := range teams {
		if strings.EqualFold(team.Row.Name, reference) {
			return team, nil
		}
	}
	var matches []teamsync.Team
	for _, team := range teams {
		if strings.HasPrefix(team.Row.ID, reference) {
			matches = append(matches, team)
		}
	}
	switch len(matches) {
	case 0:
		return teamsync.Team{}, fmt.Errorf("you belong to no team matching %q", reference)
	case 1:
		return matches[0], nil
	}
	return teamsync.Team{}, fmt.Errorf("%q matches %d teams; use more of the ID", reference, len(matches))
}

// checkOwnership verifies members hold exactly one owner membership
// and that it belongs to the team's owner.
func checkOwnership(team planner.Team, members []teamsync.Member) error {
	rows := make([]planner.TeamMember, 0, len(members))
	for _, member := range members {
		rows = append(rows, member.Row)
	}
	return planner.CheckOwnership(team, rows)
}
