// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns "prefix-N" with N increasing across the test binary.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}

// UniqueEmail returns a distinct address for sign-up fixtures.
//
//	email := testutil.UniqueEmail("alice") // "alice-7@teamflow.test"
func UniqueEmail(name string) string {
	return UniqueID(name) + "@teamflow.test"
}
