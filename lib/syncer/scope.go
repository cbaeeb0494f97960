// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import "sync/atomic"

// Scope numbers a synchronizer's successive scopes. A fetch captures
// the generation when it starts and applies its result only if the
// generation is still current, so a slow response for a superseded
// scope is discarded instead of overwriting the new scope's data.
type Scope struct {
	generation atomic.Uint64
}

// Advance starts a new scope and returns its generation.
func (s *Scope) Advance() uint64 { return s.generation.Add(1) }

// Current returns the active generation.
func (s *Scope) Current() uint64 { return s.generation.Load() }

// IsCurrent reports whether generation is still the active scope.
func (s *Scope) IsCurrent(generation uint64) bool { return s.generation.Load() == generation }
