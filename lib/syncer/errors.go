// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import "fmt"

// FetchError reports a failed load. The synchronizer's cached state is
// unchanged.
type FetchError struct {
	Collection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InsertError reports a failed create.
type InsertError struct {
	Collection string
	Err        error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("inserting into %s: %v", e.Collection, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// WriteError reports a failed update or delete.
type WriteError struct {
	Collection string
	Op         string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
