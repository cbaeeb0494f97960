// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
)

// Joined is a row with the profile its foreign key refers to. Profile
// is the zero Profile (with ID set) when the user has no profile row.
type Joined[T any] struct {
	Row     T               `json:"row"`
	Profile planner.Profile `json:"profile"`
}

// DistinctKeys returns each non-empty key of rows once, in first-seen
// order.
func DistinctKeys[T any](rows []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(rows))
	var keys []string
	for _, row := range rows {
		value := key(row)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		keys = append(keys, value)
	}
	return keys
}

// JoinProfiles pairs each row with profiles[key(row)], preserving row
// order.
func JoinProfiles[T any](rows []T, key func(T) string, profiles map[string]planner.Profile) []Joined[T] {
	joined := make([]Joined[T], len(rows))
	for i, row := range rows {
		id := key(row)
		profile, ok := profiles[id]
		if !ok {
			profile = planner.Profile{ID: id}
		}
		joined[i] = Joined[T]{Row: row, Profile: profile}
	}
	return joined
}

// FetchProfiles loads the profiles for ids with one query.
func FetchProfiles(ctx context.Context, service datastore.DataService, ids []string) (map[string]planner.Profile, error) {
	profiles := make(map[string]planner.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	rows, err := service.Select(ctx, datastore.From(datastore.TableProfiles).Filter(datastore.In("id", ids...)))
	if err != nil {
		return nil, err
	}
	decoded, err := datastore.DecodeAll[planner.Profile](rows)
	if err != nil {
		return nil, err
	}
	for _, profile := range decoded {
		profiles[profile.ID] = profile
	}
	return profiles, nil
}

// FetchAndJoin is the whole join step: collect the distinct keys,
// batch-fetch their profiles, and merge.
func FetchAndJoin[T any](ctx context.Context, service datastore.DataService, rows []T, key func(T) string) ([]Joined[T], error) {
	profiles, err := FetchProfiles(ctx, service, DistinctKeys(rows, key))
	if err != nil {
		return nil, err
	}
	return JoinProfiles(rows, key, profiles), nil
}
