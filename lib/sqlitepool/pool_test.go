// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/teamflow/lib/sqlitepool"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS lanes (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);`

func TestOpenAppliesPragmasAndSchema(t *testing.T) {
	pool := openTestPool(t)

	err := pool.With(context.Background(), func(conn *sqlite.Conn) error {
		var journalMode string
		err := sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if journalMode != "wal" {
			t.Errorf("journal_mode = %q, want wal", journalMode)
		}
		return sqlitex.Execute(conn, "INSERT INTO lanes (name) VALUES (?)", &sqlitex.ExecOptions{
			Args: []any{"todo"},
		})
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
}

func TestImmediateRollsBackOnError(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	failure := errors.New("abort")

	err := pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "INSERT INTO lanes (name) VALUES ('review')", nil); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Immediate error = %v, want %v", err, failure)
	}

	if count := countLanes(t, pool); count != 0 {
		t.Fatalf("rolled-back insert left %d rows", count)
	}

	err = pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO lanes (name) VALUES ('done')", nil)
	})
	if err != nil {
		t.Fatalf("Immediate: %v", err)
	}
	if count := countLanes(t, pool); count != 1 {
		t.Fatalf("committed insert count = %d, want 1", count)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestTakeHonoursCancelledContext(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take on an exhausted pool with a cancelled context should fail")
	}
}

func countLanes(t *testing.T, pool *sqlitepool.Pool) int {
	t.Helper()
	count := -1
	err := pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT count(*) FROM lanes", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func openTestPool(t *testing.T) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
		Schema:   testSchema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
