// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
)

func presenceCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "presence",
		Summary: "See who is online",
		Description: `Every command run with a saved session marks its user online.
A user stays online for the presence window (5 minutes by default)
after their last heartbeat.`,
		Subcommands: []*cli.Command{
			presenceOnlineCommand(env),
			presenceBeatCommand(env),
		},
	}
}

func presenceOnlineCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
		watch  bool
	)
	return &cli.Command{
		Name:    "online",
		Summary: "List online users, most recently seen first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("online", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlags(flagSet)
			flagSet.BoolVarP(&watch, "watch", "w", false, "keep printing as users come and go (keeps you online)")
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "presence/online")
			if err != nil {
				return err
			}
			defer app.Close()
			if _, err := app.resume(); err != nil {
				return err
			}

			synchronizer := app.client.Presence()
			defer synchronizer.Close()
			if err := synchronizer.LoadOnline(env.ctx); err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.stdout, synchronizer.Online()); done {
				return err
			}

			renderer := app.renderer()
			fmt.Fprintln(env.stdout, renderer.Online(synchronizer.Online(), app.now()))
			if !watch {
				return nil
			}
			select {
			case <-synchronizer.Changed():
			default:
			}
			for {
				select {
				case <-env.ctx.Done():
					return nil
				case <-synchronizer.Changed():
				}
				now := app.now()
				fmt.Fprintf(env.stdout, "── %s ──\n%s\n", now.Format(time.TimeOnly), renderer.Online(synchronizer.Online(), now))
			}
		},
	}
}

func presenceBeatCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		once   bool
	)
	return &cli.Command{
		Name:    "beat",
		Summary: "Stay online until interrupted",
		Description: `Keep the signed-in user online: heartbeat every presence interval
until interrupted. With --once, record a single heartbeat and exit.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("beat", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.BoolVar(&once, "once", false, "record one heartbeat and exit")
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "presence/beat")
			if err != nil {
				return err
			}
			defer app.Close()
			userID, err := app.resume()
			if err != nil {
				return err
			}

			heartbeat := app.client.Heartbeat()
			if once {
				if err := heartbeat.Beat(env.ctx); err != nil {
					return err
				}
				fmt.Fprintln(env.stdout, "Online")
				return nil
			}

			// The client starts the heartbeat when the session resumes;
			// starting it here as well is a no-op unless that failed.
			if err := heartbeat.Start(env.ctx); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Online as %s every %s (interrupt to stop)\n",
				app.displayName(userID), app.config.Presence.Interval)
			<-env.ctx.Done()
			return nil
		},
	}
}
