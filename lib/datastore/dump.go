// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/teamflow/lib/codec"
)

// Dump streams every row of table in insertion order, bypassing the
// row policy.
func (s *Store) Dump(ctx context.Context, tableName string, fn func(payload codec.RawMessage) error) error {
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	err = s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+t.selectList()+" FROM "+t.name+" ORDER BY rowid",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					payload, err := t.scan(stmt).marshal()
					if err != nil {
						return err
					}
					return fn(payload)
				},
			})
	})
	return classify(t.name, err)
}

// Restore empties every table and reloads it from load, all in one
// transaction. load calls put once per row; rows are stored exactly
// as given, with no generated keys or timestamps. No feed events are
// published, so open synchronizers must reload.
func (s *Store) Restore(ctx context.Context, load func(put func(tableName string, payload codec.RawMessage) error) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		for _, name := range Tables() {
			if err := sqlitex.Execute(conn, "DELETE FROM "+name, nil); err != nil {
				return err
			}
		}
		return load(func(tableName string, payload codec.RawMessage) error {
			t, err := lookupTable(tableName)
			if err != nil {
				return err
			}
			fields, err := Fields(payload)
			if err != nil {
				return err
			}
			record, err := t.normalize(fields)
			if err != nil {
				return err
			}
			_, err = insertRow(conn, t, record)
			return classify(t.name, err)
		})
	})
	if err != nil {
		return classify("", err)
	}
	s.logger.Info("store restored", "path", s.pool.Path())
	return nil
}
