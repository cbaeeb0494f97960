// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/clock"
)

// Root returns the complete teamflow command tree. Commands write
// their output to stdout and stop blocking work when ctx is done.
func Root(ctx context.Context, stdout io.Writer) *cli.Command {
	return root(&environment{ctx: ctx, stdout: stdout, clock: clock.Real()})
}

func root(env *environment) *cli.Command {
	return &cli.Command{
		Name: "teamflow",
		Description: `Teamflow: a shared task board for small teams.

Tasks are private to their creator and assignee unless they belong to
a team, in which case every member sees them. Changes made by anyone
appear in "tasks watch" and "presence online --watch" as they commit.

Data lives in a local SQLite store (store.path in the configuration).
Point --config, or $TEAMFLOW_CONFIG, at a YAML file to change it.`,
		Subcommands: []*cli.Command{
			signupCommand(env),
			loginCommand(env),
			logoutCommand(env),
			whoamiCommand(env),
			tasksCommand(env),
			teamsCommand(env),
			commentsCommand(env),
			presenceCommand(env),
			snapshotCommand(env),
			versionCommand(env),
		},
		Examples: []cli.Example{
			{Description: "Create an account (prompts for a password)", Command: "teamflow signup alice@example.com --name 'Alice Liddell'"},
			{Description: "See your board", Command: "teamflow tasks list --board"},
			{Description: "Start a team and invite someone", Command: "teamflow teams create Platform && teamflow teams invite Platform bob@example.com"},
			{Description: "Follow urgent work as it changes", Command: "teamflow tasks watch --filter urgent"},
			{Description: "Back up the store", Command: "teamflow snapshot export backup.tfsnap"},
		},
	}
}
