// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the test helpers shared across teamflow
// packages.
//
// [RequireReceive], [RequireNoReceive], [RequireClosed] and
// [Eventually] wrap the select-with-timeout pattern so tests never
// sleep for synchronization. They are the only places where tests
// touch the wall clock; everything under test runs on clock.Fake.
//
// [UniqueID] and [UniqueEmail] produce distinct fixture identifiers.
//
// Helpers fail the test with t.Fatalf instead of returning errors.
package testutil
