// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"context"

	"github.com/bureau-foundation/teamflow/lib/codec"
)

// Client is one session's view of the Store. It resolves the caller
// on every operation, so a session that signs out loses access
// immediately.
type Client struct {
	store  *Store
	caller func() (string, bool)
	admin  bool
}

var _ DataService = (*Client)(nil)

// Client returns a DataService acting as whichever user caller
// reports. A nil caller is a client with no session.
func (s *Store) Client(caller func() (string, bool)) *Client {
	if caller == nil {
		caller = func() (string, bool) { return "", false }
	}
	return &Client{store: s, caller: caller}
}

// Admin returns a DataService that bypasses authentication and the row
// policy. Only the identity provider and snapshot tooling use it.
func (s *Store) Admin() *Client {
	return &Client{store: s, caller: func() (string, bool) { return "", false }, admin: true}
}

// Caller returns the signed-in user, if any.
func (c *Client) Caller() (string, bool) {
	return c.caller()
}

// principal resolves the acting user for an operation on table.
// Profile reads are allowed without a session; everything else
// requires one.
func (c *Client) principal(table string, anonymousRead bool) (principal, error) {
	if c.admin {
		return principal{admin: true}, nil
	}
	user, ok := c.caller()
	if !ok || user == "" {
		if anonymousRead && table == TableProfiles {
			return principal{}, nil
		}
		return principal{}, newError(CodeAuthRequired, table, "no active session")
	}
	return principal{user: user}, nil
}

func (c *Client) Select(ctx context.Context, query Query) ([]codec.RawMessage, error) {
	p, err := c.principal(query.Table, true)
	if err != nil {
		return nil, err
	}
	return c.store.selectRows(ctx, p, query)
}

func (c *Client) Insert(ctx context.Context, table string, value any) (codec.RawMessage, error) {
	p, err := c.principal(table, false)
	if err != nil {
		return nil, err
	}
	return c.store.insert(ctx, p, table, value)
}

func (c *Client) Update(ctx context.Context, table, id string, patch map[string]any) (Change, error) {
	p, err := c.principal(table, false)
	if err != nil {
		return Change{}, err
	}
	return c.store.update(ctx, p, table, id, patch)
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	p, err := c.principal(table, false)
	if err != nil {
		return err
	}
	return c.store.delete(ctx, p, table, id)
}

func (c *Client) DeleteWhere(ctx context.Context, table string, conditions ...Condition) (int, error) {
	p, err := c.principal(table, false)
	if err != nil {
		return 0, err
	}
	return c.store.deleteWhere(ctx, p, table, conditions)
}

func (c *Client) Upsert(ctx context.Context, table string, value any, conflictColumn string) (codec.RawMessage, error) {
	p, err := c.principal(table, false)
	if err != nil {
		return nil, err
	}
	return c.store.upsert(ctx, p, table, value, conflictColumn)
}

func (c *Client) Subscribe(ctx context.Context, subscription Subscription) (*Feed, error) {
	p, err := c.principal(subscription.Table, false)
	if err != nil {
		return nil, err
	}
	return c.store.subscribe(ctx, p, subscription)
}
