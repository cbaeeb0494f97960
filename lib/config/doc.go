// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the teamflow YAML configuration.
//
// A configuration file is named by the --config flag or the
// TEAMFLOW_CONFIG environment variable (see [Resolve]). Without
// either, [Default] is used as is. There is no search path.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// without an explicit section gets bounded session lifetimes.
//
// After loading, ${HOME}, ${TEAMFLOW_ROOT} and ${VAR:-default}
// patterns are expanded in path fields. No other environment
// variables override config values.
//
// Key exports:
//
//   - [Config] with Paths, Store, Presence, Session and Log sections
//   - [Default] returns development defaults
//   - [Load], [LoadFile] and [Resolve] are the loading entry points
//   - [Config.Validate] reports every problem at once via errors.Join
//
// This package depends on no other teamflow packages.
package config
