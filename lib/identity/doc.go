// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity is the embedded identity provider: email and
// password credentials, bearer session tokens, and the per-client
// [Session] whose signed-in user the datastore acts as.
//
// Credentials live beside the collections in the store's SQLite
// database, in tables the data service does not expose. Passwords are
// hashed with Argon2id and a per-user salt. Session tokens are 32
// random bytes handed to the client once; the provider keeps only a
// domain-keyed BLAKE3 digest of each.
//
// Sign-up creates the credential and the user's profile row, then
// signs in. A [Session] reports sign-in and sign-out through
// [Session.Watch].
package identity
