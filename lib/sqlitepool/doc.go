// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the SQLite connection pool behind the embedded
// datastore and identity provider.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and prepares every
// connection the same way: WAL journaling so feed readers never block
// writers, NORMAL synchronous, a five second busy timeout for write
// contention, then the caller's idempotent schema script.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(dir, "teamflow.db"),
//	    Logger: logger,
//	    Schema: schemaSQL,
//	})
//	defer pool.Close()
//
//	err = pool.Immediate(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM presence", nil)
//	})
//
// Referential integrity is managed by the datastore, so foreign key
// enforcement is off.
package sqlitepool
