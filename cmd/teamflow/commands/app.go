// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/teamflow/cmd/teamflow/cli"
	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/config"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/identity"
	"github.com/bureau-foundation/teamflow/lib/render"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/teamflow"
)

// environment carries what the command tree shares: the output writer
// and the process context. Tests substitute both and lower the
// password hashing cost.
type environment struct {
	ctx    context.Context
	stdout io.Writer
	argon2 identity.Argon2Params
	clock  clock.Clock
}

// globalOptions are the flags every data command accepts.
type globalOptions struct {
	configPath string
	verbose    bool
}

func (g *globalOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.configPath, "config", "", "configuration file (default $"+config.EnvVar+", else built-in defaults)")
	flagSet.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")
}

// app is one opened store with a client for the session user.
type app struct {
	env    *environment
	config *config.Config
	logger *slog.Logger
	store  *datastore.Store
	client *teamflow.Client
}

func (e *environment) open(options *globalOptions, command string) (*app, error) {
	cfg, err := config.Resolve(options.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if options.verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level).With("command", command)

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	store, err := datastore.Open(datastore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Clock:    e.clock,
		Logger:   logger.With("component", "datastore"),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}
	provider, err := identity.New(e.ctx, identity.Config{
		Store:      store,
		SessionTTL: cfg.Session.TTL,
		Argon2:     e.argon2,
		Logger:     logger.With("component", "identity"),
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	client, err := teamflow.New(teamflow.Config{
		Store:            store,
		Identity:         provider,
		Clock:            e.clock,
		PresenceInterval: cfg.Presence.Interval,
		PresenceWindow:   cfg.Presence.Window,
		Logger:           logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug("store opened", "path", cfg.Store.Path, "environment", cfg.Environment)
	return &app{env: e, config: cfg, logger: logger, store: store, client: client}, nil
}

// Close stops the client and then closes the store.
func (a *app) Close() {
	a.client.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store failed", "error", err)
	}
}

// resume restores the saved session and returns the user ID. An
// expired or revoked token removes the session file.
func (a *app) resume() (string, error) {
	saved, err := cli.LoadSessionFrom(a.config.Session.File)
	if err != nil {
		return "", err
	}
	if err := a.client.Session().Resume(a.env.ctx, saved.Token); err != nil {
		if datastore.IsCode(err, datastore.CodeAuthRequired) {
			if removeErr := cli.RemoveSession(a.config.Session.File); removeErr != nil {
				a.logger.Warn("removing stale session failed", "error", removeErr)
			}
			return "", fmt.Errorf("session expired (run \"teamflow login\" again): %w", err)
		}
		return "", err
	}
	userID, _ := a.client.Session().User()
	a.logger.Debug("session resumed", "user_id", userID)
	return userID, nil
}

// save persists the current session token.
func (a *app) save(email string) error {
	userID, ok := a.client.Session().User()
	if !ok {
		return errors.New("no session to save")
	}
	return cli.SaveSessionTo(&cli.SavedSession{
		UserID: userID,
		Email:  email,
		Token:  a.client.Session().Token(),
	}, a.config.Session.File)
}

// renderer styles output for the command's stdout.
func (a *app) renderer() *render.Renderer {
	options := render.Options{Profile: render.Detect(a.env.stdout)}
	if file, ok := a.env.stdout.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil {
			options.Width = width
		}
	}
	return render.New(a.env.stdout, options)
}

func (a *app) now() time.Time { return a.store.Clock().Now() }

// profile fetches one profile by ID.
func (a *app) profile(userID string) (planner.Profile, error) {
	rows, err := a.client.Data().Select(a.env.ctx, datastore.From(datastore.TableProfiles).
		Filter(datastore.Eq("id", userID)))
	if err != nil {
		return planner.Profile{}, err
	}
	if len(rows) == 0 {
		return planner.Profile{}, fmt.Errorf("profile %s: %w", userID, datastore.ErrNotFound)
	}
	return datastore.Decode[planner.Profile](rows[0])
}

// resolveUser accepts a user ID or an email address.
func (a *app) resolveUser(reference string) (string, error) {
	if !strings.Contains(reference, "@") {
		return reference, nil
	}
	email, err := identity.NormalizeEmail(reference)
	if err != nil {
		return "", err
	}
	rows, err := a.client.Data().Select(a.env.ctx, datastore.From(datastore.TableProfiles).
		Filter(datastore.Eq("email", email)))
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no user registered as %s: %w", email, datastore.ErrNotFound)
	}
	profile, err := datastore.Decode[planner.Profile](rows[0])
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

// expectArgs checks the positional argument count.
func expectArgs(args []string, want int, usage string) error {
	if len(args) != want {
		return fmt.Errorf("expected %d argument(s), got %d\n\nUsage: %s", want, len(args), usage)
	}
	return nil
}
