// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/commentsync"
	"github.com/bureau-foundation/teamflow/lib/render"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/snapshot"
	"github.com/bureau-foundation/teamflow/lib/tasksearch"
	"github.com/bureau-foundation/teamflow/lib/tasksync"
)

func tasksCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "tasks",
		Summary: "List, create, and update tasks",
		Description: `Work with the tasks visible to the signed-in user: tasks they
created, tasks assigned to them, and tasks of teams they belong to.

Task arguments accept a full ID or any unique prefix of one, such as
the eight characters shown in listings.`,
		Subcommands: []*cli.Command{
			tasksListCommand(env),
			tasksShowCommand(env),
			tasksSearchCommand(env),
			tasksCreateCommand(env),
			tasksUpdateCommand(env),
			tasksDeleteCommand(env),
			tasksImportCommand(env),
			tasksWatchCommand(env),
		},
	}
}

// viewOptions select which tasks a listing shows.
type viewOptions struct {
	filter     string
	scope      string
	team       string
	statuses   []string
	priorities []string
	board      bool
}

func (v *viewOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&v.filter, "filter", "all", "all, assigned, or urgent")
	flagSet.StringVar(&v.scope, "scope", "", "personal or team (default both)")
	flagSet.StringVar(&v.team, "team", "", "team ID or name (implies --scope team)")
	flagSet.StringSliceVar(&v.statuses, "status", nil, "only these statuses (todo, in-progress, review, done)")
	flagSet.StringSliceVar(&v.priorities, "priority", nil, "only these priorities (low, medium, high, urgent)")
	flagSet.BoolVar(&v.board, "board", false, "lay tasks out in status columns")
}

func (v *viewOptions) spec(app *app) (tasksync.FilterSpec, error) {
	spec := tasksync.FilterSpec{
		Filter: tasksync.Filter(v.filter),
		Scope:  tasksync.Scope(v.scope),
	}
	if v.team != "" {
		team, err := app.resolveTeam(v.team)
		if err != nil {
			return tasksync.FilterSpec{}, err
		}
		spec.Scope, spec.TeamID = tasksync.ScopeTeam, team.Row.ID
	}
	for _, value := range v.statuses {
		status, err := planner.ParseStatus(value)
		if err != nil {
			return tasksync.FilterSpec{}, err
		}
		spec.Statuses = append(spec.Statuses, status)
	}
	for _, value := range v.priorities {
		priority, err := planner.ParsePriority(value)
		if err != nil {
			return tasksync.FilterSpec{}, err
		}
		spec.Priorities = append(spec.Priorities, priority)
	}
	return spec, spec.Validate()
}

func (v *viewOptions) render(renderer *render.Renderer, tasks []planner.Task, now time.Time) string {
	if v.board {
		return renderer.Board(tasks, now)
	}
	return renderer.TaskList(tasks, now)
}

func tasksListCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		view   viewOptions
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List visible tasks, newest first",
		Examples: []cli.Example{
			{Description: "Urgent tasks across personal and team work", Command: "teamflow tasks list --filter urgent"},
			{Description: "One team's board", Command: "teamflow tasks list --team platform --board"},
			{Description: "Open work assigned to me", Command: "teamflow tasks list --filter assigned --status todo,in-progress"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			global.addFlags(flagSet)
			view.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 0, "teamflow tasks list [flags]"); err != nil {
				return err
			}
			app, err := env.open(&global, "tasks/list")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			spec, err := view.spec(app)
			if err != nil {
				return err
			}
			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			if err := synchronizer.Load(env.ctx, spec); err != nil {
				return err
			}

			tasks := synchronizer.Tasks()
			if done, err := output.EmitJSON(env.stdout, tasks); done {
				return err
			}
			fmt.Fprintln(env.stdout, view.render(app.renderer(), tasks, app.now()))
			return nil
		},
	}
}

func tasksSearchCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		view   viewOptions
		output cli.JSONOutput
		limit  int
	)
	return &cli.Command{
		Name:    "search",
		Summary: "Find visible tasks by title and description",
		Description: `Rank the tasks of a view against the query words. Title matches
weigh more than description matches. The view flags are those of
"tasks list".`,
		Examples: []cli.Example{
			{Description: "Tasks mentioning the login flow", Command: "teamflow tasks search login redirect"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("search", pflag.ContinueOnError)
			global.addFlags(flagSet)
			view.addFlags(flagSet)
			output.AddFlags(flagSet)
			flagSet.IntVarP(&limit, "limit", "n", 10, "show at most this many tasks (0 for all)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: teamflow tasks search QUERY... [flags]")
			}
			app, err := env.open(&global, "tasks/search")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			spec, err := view.spec(app)
			if err != nil {
				return err
			}
			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			if err := synchronizer.Load(env.ctx, spec); err != nil {
				return err
			}

			hits := tasksearch.New(synchronizer.Tasks()).Search(strings.Join(args, " "), limit)
			if done, err := output.EmitJSON(env.stdout, hits); done {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(env.stdout, "No matching tasks")
				return nil
			}
			tasks := make([]planner.Task, len(hits))
			for i, hit := range hits {
				tasks[i] = hit.Task
			}
			fmt.Fprintln(env.stdout, app.renderer().TaskList(tasks, app.now()))
			return nil
		},
	}
}

func tasksShowCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Show a task with its description and comments",
		Usage:   "teamflow tasks show <task> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow tasks show <task> [flags]"); err != nil {
				return err
			}
			app, err := env.open(&global, "tasks/show")
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

			if done, err := output.EmitJSON(env.stdout, struct {
				Task     planner.Task          `json:"task"`
				Comments []commentsync.Comment `json:"comments"`
			}{task, comments.Comments()}); done {
				return err
			}

			renderer := app.renderer()
			now := app.now()
			fmt.Fprintln(env.stdout, task.Title)
			fmt.Fprintf(env.stdout, "id:        %s\n", task.ID)
			fmt.Fprintf(env.stdout, "status:    %s\n", task.Status.Label())
			fmt.Fprintf(env.stdout, "priority:  %s\n", task.Priority.Label())
			if label := planner.DeadlineLabel(task.Deadline, now); label != "" {
				fmt.Fprintf(env.stdout, "deadline:  %s (%s)\n", *task.Deadline, label)
			}
			if task.AssigneeID != nil {
				fmt.Fprintf(env.stdout, "assignee:  %s\n", app.displayName(*task.AssigneeID))
			}
			if task.TeamID != nil {
				fmt.Fprintf(env.stdout, "team:      %s\n", *task.TeamID)
			} else {
				fmt.Fprintln(env.stdout, "team:      (private)")
			}
			if strings.TrimSpace(task.Description) != "" {
				fmt.Fprintf(env.stdout, "\n%s\n", renderer.Markdown(task.Description, renderer.Width()))
			}
			fmt.Fprintf(env.stdout, "\nComments:\n%s\n", renderer.Comments(comments.Comments()))
			return nil
		},
	}
}

// taskFields are the task attributes settable from flags.
type taskFields struct {
	title       string
	description string
	priority    string
	status      string
	deadline    string
	assignee    string
	team        string
}

func (f *taskFields) addFlags(flagSet *pflag.FlagSet, withTitle bool) {
	if withTitle {
		flagSet.StringVar(&f.title, "title", "", "new title")
	}
	flagSet.StringVarP(&f.description, "description", "d", "", "description (markdown)")
	flagSet.StringVarP(&f.priority, "priority", "p", "", "low, medium, high, or urgent")
	flagSet.StringVarP(&f.status, "status", "s", "", "todo, in-progress, review, or done")
	flagSet.StringVar(&f.deadline, "deadline", "", "RFC 3339 time or YYYY-MM-DD date (empty clears on update)")
	flagSet.StringVar(&f.assignee, "assignee", "", "assignee user ID or email (empty clears on update)")
	flagSet.StringVar(&f.team, "team", "", "team ID or name (empty makes the task private on update)")
}

// parseDeadline accepts RFC 3339 or a date, which means midnight local
// time. The empty string stays empty.
func parseDeadline(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if when, err := time.Parse(time.RFC3339, value); err == nil {
		return when.UTC().Format(time.RFC3339), nil
	}
	when, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return "", fmt.Errorf("deadline %q is neither RFC 3339 nor YYYY-MM-DD", value)
	}
	return when.UTC().Format(time.RFC3339), nil
}

func tasksCreateCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		fields taskFields
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Create a task",
		Description: `Create a task. The title is the remaining arguments joined by spaces.

A task with --team is shared with that team's members; without it the
task is private to its creator and assignee.`,
		Usage: "teamflow tasks create <title...> [flags]",
		Examples: []cli.Example{
			{Command: "teamflow tasks create Write release notes --priority high --deadline 2026-11-02"},
			{Command: "teamflow tasks create Rotate keys --team platform --assignee bob@example.com"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			global.addFlags(flagSet)
			fields.addFlags(flagSet, false)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "tasks/create")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			draft := tasksync.Draft{
				Title:       strings.Join(args, " "),
				Description: fields.description,
			}
			if fields.priority != "" {
				if draft.Priority, err = planner.ParsePriority(fields.priority); err != nil {
					return err
				}
			}
			if fields.status != "" {
				if draft.Status, err = planner.ParseStatus(fields.status); err != nil {
					return err
				}
			}
			deadline, err := parseDeadline(fields.deadline)
			if err != nil {
				return err
			}
			draft.Deadline = planner.Ref(deadline)
			if fields.assignee != "" {
				assignee, err := app.resolveUser(fields.assignee)
				if err != nil {
					return err
				}
				draft.AssigneeID = planner.Ref(assignee)
			}
			if fields.team != "" {
				team, err := app.resolveTeam(fields.team)
				if err != nil {
					return err
				}
				draft.TeamID = planner.Ref(team.Row.ID)
			}

			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			task, err := synchronizer.Create(env.ctx, draft)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.stdout, task); done {
				return err
			}
			fmt.Fprintf(env.stdout, "Created %s %q\n", render.ShortID(task.ID), task.Title)
			return nil
		},
	}
}

func tasksUpdateCommand(env *environment) *cli.Command {
	var (
		global  globalOptions
		fields  taskFields
		output  cli.JSONOutput
		flagSet *pflag.FlagSet
	)
	return &cli.Command{
		Name:    "update",
		Summary: "Change a task's fields",
		Description: `Change the fields named by flags; others are left alone.

A status change is recorded in the task's history.`,
		Usage: "teamflow tasks update <task> [flags]",
		Examples: []cli.Example{
			{Description: "Move a task to review", Command: "teamflow tasks update 3f2a9c1d --status review"},
			{Description: "Make a team task private", Command: "teamflow tasks update 3f2a9c1d --team ''"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("update", pflag.ContinueOnError)
			global.addFlags(flagSet)
			fields.addFlags(flagSet, true)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow tasks update <task> [flags]"); err != nil {
				return err
			}
			app, err := env.open(&global, "tasks/update")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			patch, err := fields.patch(app, flagSet)
			if err != nil {
				return err
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update (see 'teamflow tasks update --help')")
			}
			existing, err := app.resolveTask(args[0])
			if err != nil {
				return err
			}

			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			task, err := synchronizer.Update(env.ctx, existing.ID, patch)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.stdout, task); done {
				return err
			}
			fmt.Fprintf(env.stdout, "Updated %s %q\n", render.ShortID(task.ID), task.Title)
			return nil
		},
	}
}

// patch builds a Patch from the flags the user actually set.
func (f *taskFields) patch(app *app, flagSet *pflag.FlagSet) (tasksync.Patch, error) {
	var patch tasksync.Patch
	changed := flagSet.Changed
	if changed("title") {
		patch.Title = &f.title
	}
	if changed("description") {
		patch.Description = &f.description
	}
	if changed("priority") {
		priority, err := planner.ParsePriority(f.priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &priority
	}
	if changed("status") {
		status, err := planner.ParseStatus(f.status)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}
	if changed("deadline") {
		deadline, err := parseDeadline(f.deadline)
		if err != nil {
			return patch, err
		}
		patch.Deadline = &deadline
	}
	if changed("assignee") {
		assignee := ""
		if f.assignee != "" {
			var err error
			if assignee, err = app.resolveUser(f.assignee); err != nil {
				return patch, err
			}
		}
		patch.AssigneeID = &assignee
	}
	if changed("team") {
		teamID := ""
		if f.team != "" {
			team, err := app.resolveTeam(f.team)
			if err != nil {
				return patch, err
			}
			teamID = team.Row.ID
		}
		patch.TeamID = &teamID
	}
	return patch, nil
}

func tasksDeleteCommand(env *environment) *cli.Command {
	var global globalOptions
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a task",
		Usage:   "teamflow tasks delete <task> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			global.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow tasks delete <task> [flags]"); err != nil {
				return err
			}
			app, err := env.open(&global, "tasks/delete")
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
			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			if err := synchronizer.Delete(env.ctx, task.ID); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Deleted %s %q\n", render.ShortID(task.ID), task.Title)
			return nil
		},
	}
}

func tasksImportCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		team   string
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Create tasks from a JSON file",
		Description: `Create one task per entry of a JSON array read from a file ("-" for
stdin). Comments and trailing commas are allowed. Entries use the task
field names: title, description, priority, status, deadline,
assignee_id, team_id.

Tasks are created in file order. The first failure stops the import;
tasks created before it remain.`,
		Usage: "teamflow tasks import <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&team, "team", "", "team ID or name for entries without team_id")
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow tasks import <file> [flags]"); err != nil {
				return err
			}
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			drafts, err := snapshot.ReadDrafts(data)
			if err != nil {
				return err
			}

			app, err := env.open(&global, "tasks/import")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			var defaultTeam *string
			if team != "" {
				resolved, err := app.resolveTeam(team)
				if err != nil {
					return err
				}
				defaultTeam = planner.Ref(resolved.Row.ID)
			}

			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			for index, draft := range drafts {
				if draft.TeamID == nil {
					draft.TeamID = defaultTeam
				}
				if _, err := synchronizer.Create(env.ctx, draft); err != nil {
					return fmt.Errorf("entry %d (%q): %w (%d created)", index, draft.Title, err, index)
				}
			}
			fmt.Fprintf(env.stdout, "Imported %d task(s)\n", len(drafts))
			return nil
		},
	}
}

func tasksWatchCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		view   viewOptions
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow a task view as it changes",
		Description: `Print a task view, then print it again whenever the change feed
alters it. Stops on interrupt.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			global.addFlags(flagSet)
			view.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "tasks/watch")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			spec, err := view.spec(app)
			if err != nil {
				return err
			}
			synchronizer := app.client.Tasks()
			defer synchronizer.Close()
			if err := synchronizer.Load(env.ctx, spec); err != nil {
				return err
			}
			select {
			case <-synchronizer.Changed():
			default:
			}

			renderer := app.renderer()
			for {
				now := app.now()
				fmt.Fprintf(env.stdout, "── %s ──\n%s\n", now.Format(time.TimeOnly), view.render(renderer, synchronizer.Tasks(), now))
				select {
				case <-env.ctx.Done():
					return nil
				case <-synchronizer.Changed():
				}
			}
		},
	}
}

// resolveTask finds a visible task by ID or unique ID prefix.
func (a *app) resolveTask(reference string) (planner.Task, error) {
	synchronizer := a.client.Tasks()
	defer synchronizer.Close()
	if err := synchronizer.Load(a.env.ctx, tasksync.FilterSpec{Filter: tasksync.FilterAll}); err != nil {
		return planner.Task{}, err
	}
	if task, ok := synchronizer.Task(reference); ok {
		return task, nil
	}
	var matches []planner.Task
	for _, task := range synchronizer.Tasks() {
		if strings.HasPrefix(task.ID, reference) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return planner.Task{}, fmt.Errorf("no visible task matches %q", reference)
	case 1:
		return matches[0], nil
	}
	return planner.Task{}, fmt.Errorf("%q matches %d tasks; use more of the ID", reference, len(matches))
}

// displayName returns the user's name, or the ID when the profile
// cannot be read.
func (a *app) displayName(userID string) string {
	profile, err := a.profile(userID)
	if err != nil {
		return userID
	}
	return profile.DisplayName()
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// timestamp renders a stored timestamp in local time, or the raw value
// when it does not parse.
func timestamp(value string) string {
	when, err := time.Parse(clock.TimestampLayout, value)
	if err != nil {
		return value
	}
	return when.Local().Format(time.DateTime)
}
