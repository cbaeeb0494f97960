// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"context"

	"github.com/bureau-foundation/teamflow/lib/codec"
)

// DataService is the remote data boundary the synchronizers are
// written against. Rows cross it as CBOR; decode them with Decode or
// DecodeAll. Values passed in may be json-tagged structs or field
// maps.
type DataService interface {
	// Caller returns the signed-in user ID, or false with no session.
	Caller() (string, bool)

	// Select returns the rows matching query that the caller may see.
	Select(ctx context.Context, query Query) ([]codec.RawMessage, error)

	// Insert stores a new row and returns it as stored, with any
	// generated identity and timestamps.
	Insert(ctx context.Context, table string, value any) (codec.RawMessage, error)

	// Update applies a partial patch to the row with the given key and
	// returns the row before and after. A missing row is NotFound.
	Update(ctx context.Context, table, id string, patch map[string]any) (Change, error)

	// Delete removes the row with the given key. Deleting a missing
	// row succeeds.
	Delete(ctx context.Context, table, id string) error

	// DeleteWhere removes every row matching all conditions and
	// returns how many were removed.
	DeleteWhere(ctx context.Context, table string, conditions ...Condition) (int, error)

	// Upsert inserts value, or updates the existing row whose
	// conflictColumn equals value's.
	Upsert(ctx context.Context, table string, value any, conflictColumn string) (codec.RawMessage, error)

	// Subscribe opens a change feed. The feed is released when ctx
	// ends or Release is called, whichever is first.
	Subscribe(ctx context.Context, subscription Subscription) (*Feed, error)
}
