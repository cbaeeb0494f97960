// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/commentsync"
	"github.com/bureau-foundation/teamflow/lib/render"
)

func commentsCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "comments",
		Summary: "Read and write task comments",
		Subcommands: []*cli.Command{
			commentCommand(env, "list", "Show a task's comments, oldest first", "teamflow comments list <task> [flags]", true,
				func(app *app, comments *commentsync.Synchronizer, args []string, output *cli.JSONOutput) error {
					thread := comments.Comments()
					if done, err := output.EmitJSON(app.env.stdout, thread); done {
						return err
					}
					fmt.Fprintln(app.env.stdout, app.renderer().Comments(thread))
					return nil
				}),
			commentCommand(env, "add", "Comment on a task", "teamflow comments add <task> <text...> [flags]", false,
				func(app *app, comments *commentsync.Synchronizer, args []string, _ *cli.JSONOutput) error {
					text := strings.Join(args, " ")
					if strings.TrimSpace(text) == "" {
						return fmt.Errorf("comment text is required")
					}
					if err := comments.Add(app.env.ctx, text); err != nil {
						return err
					}
					fmt.Fprintf(app.env.stdout, "Commented on %s\n", render.ShortID(comments.TaskID()))
					return nil
				}),
			commentCommand(env, "delete", "Delete one of your comments", "teamflow comments delete <task> <comment> [flags]", false,
				func(app *app, comments *commentsync.Synchronizer, args []string, _ *cli.JSONOutput) error {
					if len(args) != 1 {
						return fmt.Errorf("expected a comment ID\n\nUsage: teamflow comments delete <task> <comment> [flags]")
					}
					comment, err := findComment(comments.Comments(), args[0])
					if err != nil {
						return err
					}
					if err := comments.Delete(app.env.ctx, comment.Row.ID); err != nil {
						return err
					}
					fmt.Fprintf(app.env.stdout, "Deleted comment %s\n", render.ShortID(comment.Row.ID))
					return nil
				}),
		},
	}
}

// commentCommand opens the app, resolves the task named by the first
// argument, and loads its comment thread before calling run with the
// remaining arguments.
func commentCommand(env *environment, name, summary, usage string, withJSON bool,
	run func(app *app, comments *commentsync.Synchronizer, args []string, output *cli.JSONOutput) error) *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			global.addFlags(flagSet)
			if withJSON {
				output.AddFlags(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("task is required\n\nUsage: %s", usage)
			}
			app, err := env.open(&global, "comments/"+name)
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			task, err := app.resolveTask(args[0])
			if err != nil {
				return err
			}
			comments := app.client.Comments(task.ID)
			defer comments.Close()
			if err := comments.Load(env.ctx); err != nil {
				return err
			}
			return run(app, comments, args[1:], &output)
		},
	}
}

func findComment(comments []commentsync.Comment, reference string) (commentsync.Comment, error) {
	var matches []commentsync.Comment
	for _, comment := range comments {
		if comment.Row.ID == reference {
			return comment, nil
		}
		if strings.HasPrefix(comment.Row.ID, reference) {
			matches = append(matches, comment)
		}
	}
	switch len(matches) {
	case 0:
		return commentsync.Comment{}, fmt.Errorf("no comment matches %q", reference)
	case 1:
		return matches[0], nil
	}
	return commentsync.Comment{}, fmt.Errorf("%q matches %d comments; use more of the ID", reference, len(matches))
}
