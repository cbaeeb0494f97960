// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/identity"
)

func signupCommand(env *environment) *cli.Command {
	var (
		global       globalOptions
		fullName     string
		passwordFile string
	)
	return &cli.Command{
		Name:    "signup",
		Summary: "Register an account and sign in",
		Description: `Register a new account and save the session locally.

The password is read from --password-file, or prompted for on the
terminal. Passwords must be at least 6 characters.`,
		Usage: "teamflow signup <email> [flags]",
		Examples: []cli.Example{
			{Description: "Register with a display name", Command: "teamflow signup alice@example.com --name 'Alice Liddell'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("signup", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&fullName, "name", "", "display name")
			flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file (\"-\" reads stdin)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow signup <email> [flags]"); err != nil {
				return err
			}
			email, err := identity.NormalizeEmail(args[0])
			if err != nil {
				return err
			}
			password, err := cli.ReadPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			app, err := env.open(&global, "signup")
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.client.Session().SignUp(env.ctx, email, password.String(), fullName); err != nil {
				return fmt.Errorf("sign up: %w", err)
			}
			if err := app.save(email); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Signed up as %s\n", email)
			return nil
		},
	}
}

func loginCommand(env *environment) *cli.Command {
	var (
		global       globalOptions
		passwordFile string
	)
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in and save the session",
		Description: `Sign in and save the session locally.

Later commands resume the saved session transparently. The session
file (session.file in the configuration) is written with mode 0600
since it contains a bearer token.`,
		Usage: "teamflow login <email> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file (\"-\" reads stdin)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := expectArgs(args, 1, "teamflow login <email> [flags]"); err != nil {
				return err
			}
			password, err := cli.ReadPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			app, err := env.open(&global, "login")
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.client.Session().SignIn(env.ctx, args[0], password.String()); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			email, _ := identity.NormalizeEmail(args[0])
			if err := app.save(email); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Signed in as %s\n", email)
			return nil
		},
	}
}

func logoutCommand(env *environment) *cli.Command {
	var global globalOptions
	return &cli.Command{
		Name:    "logout",
		Summary: "Revoke the saved session",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("logout", pflag.ContinueOnError)
			global.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "logout")
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.resume(); err != nil {
				if errors.Is(err, cli.ErrNoSession) {
					fmt.Fprintln(env.stdout, "Not signed in")
					return nil
				}
				return err
			}
			if err := app.client.Session().SignOut(env.ctx); err != nil {
				return fmt.Errorf("sign out: %w", err)
			}
			if err := cli.RemoveSession(app.config.Session.File); err != nil {
				return err
			}
			fmt.Fprintln(env.stdout, "Signed out")
			return nil
		},
	}
}

func whoamiCommand(env *environment) *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Description: `Show the signed-in user's profile.

Exits with status 1 when no session is saved, so scripts can test for
a session.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := env.open(&global, "whoami")
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.resume()
			if err != nil {
				if errors.Is(err, cli.ErrNoSession) {
					fmt.Fprintln(os.Stderr, "Not signed in")
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			profile, err := app.profile(userID)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.stdout, profile); done {
				return err
			}
			if profile.FullName != "" {
				fmt.Fprintf(env.stdout, "%s <%s>\n", profile.FullName, profile.Email)
			} else {
				fmt.Fprintln(env.stdout, profile.Email)
			}
			fmt.Fprintf(env.stdout, "id: %s\n", profile.ID)
			return nil
		},
	}
}
