// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package teamflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/commentsync"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/identity"
	"github.com/bureau-foundation/teamflow/lib/presence"
	"github.com/bureau-foundation/teamflow/lib/tasksync"
	"github.com/bureau-foundation/teamflow/lib/teamsync"
)

// Config holds the client's collaborators. Store and Identity are
// required.
type Config struct {
	Store    *datastore.Store
	Identity *identity.Provider

	// Clock drives the presence heartbeat and poll. Nil means
	// clock.Real().
	Clock clock.Clock

	// PresenceInterval and PresenceWindow override the planner
	// defaults when non-zero.
	PresenceInterval time.Duration
	PresenceWindow   time.Duration

	Logger *slog.Logger
}

// Client is one signed-in (or signed-out) planner user.
type Client struct {
	session   *identity.Session
	data      *datastore.Client
	heartbeat *presence.Heartbeat
	clock     clock.Clock
	interval  time.Duration
	window    time.Duration
	logger    *slog.Logger

	watcher *identity.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a signed-out client and starts following its session.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, errors.New("teamflow: Store is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("teamflow: Identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	session := cfg.Identity.NewSession()
	data := cfg.Store.Client(session.User)
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		session: session,
		data:    data,
		heartbeat: presence.NewHeartbeat(presence.HeartbeatConfig{
			Data:     data,
			Clock:    clk,
			Interval: cfg.PresenceInterval,
			Logger:   logger,
		}),
		clock:    clk,
		interval: cfg.PresenceInterval,
		window:   cfg.PresenceWindow,
		logger:   logger,
		watcher:  session.Watch(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go client.followSession(ctx)
	return client, nil
}

// followSession runs the heartbeat for whoever is signed in.
func (c *Client) followSession(ctx context.Context) {
	defer close(c.done)
	defer c.heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-c.watcher.Changes():
			if !ok {
				return
			}
			c.heartbeat.Stop()
			if change.Kind != identity.SignedIn {
				continue
			}
			if _, signedIn := c.session.User(); !signedIn {
				continue
			}
			if err := c.heartbeat.Start(ctx); err != nil {
				c.logger.Warn("presence heartbeat did not start", "user_id", change.UserID, "error", err)
			}
		}
	}
}

// Session returns the client's identity session.
func (c *Client) Session() *identity.Session { return c.session }

// Data returns the data service acting as the session's user.
func (c *Client) Data() datastore.DataService { return c.data }

// Heartbeat returns the presence heartbeat the client manages.
func (c *Client) Heartbeat() *presence.Heartbeat { return c.heartbeat }

// Tasks returns a new, unloaded task synchronizer.
func (c *Client) Tasks() *tasksync.Synchronizer {
	return tasksync.New(tasksync.Config{Data: c.data, Logger: c.logger.With("component", "tasks")})
}

// Teams returns a new, unloaded team synchronizer.
func (c *Client) Teams() *teamsync.Synchronizer {
	return teamsync.New(teamsync.Config{Data: c.data, Logger: c.logger.With("component", "teams")})
}

// Comments returns a new, unloaded comment synchronizer for taskID.
func (c *Client) Comments(taskID string) *commentsync.Synchronizer {
	return commentsync.New(commentsync.Config{Data: c.data, Logger: c.logger.With("component", "comments")}, taskID)
}

// Presence returns a new, unloaded presence synchronizer.
func (c *Client) Presence() *presence.Synchronizer {
	return presence.New(presence.Config{
		Data:     c.data,
		Clock:    c.clock,
		Window:   c.window,
		Interval: c.interval,
		Logger:   c.logger.With("component", "presence"),
	})
}

// Close stops the heartbeat and the session follower. It does not
// sign out.
func (c *Client) Close() {
	c.cancel()
	c.watcher.Release()
	<-c.done
}
