// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/codec"
	"github.com/bureau-foundation/teamflow/lib/sqlitepool"
)

// Config holds the parameters for opening a Store. Path is required.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// PoolSize is passed to sqlitepool. Zero uses its default.
	PoolSize int

	// Clock stamps created_at, updated_at, and joined_at. Nil uses
	// clock.Real().
	Clock clock.Clock

	// Logger receives store diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Store is the embedded data service shared by every client session.
// Writes are serialized so that feed delivery order equals commit
// order.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
	hub    *hub

	writeMu sync.Mutex
}

// Change is the result of an Update: the row before and after.
type Change struct {
	Old codec.RawMessage
	New codec.RawMessage
}

// row is a stored record in canonical form: every column present,
// values are string, nil, or bool.
type row map[string]any

func (r row) marshal() (codec.RawMessage, error) {
	if r == nil {
		return nil, nil
	}
	return codec.Marshal(map[string]any(r))
}

// Open opens (creating if needed) the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	storeClock := cfg.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		Schema:   schemaSQL,
	})
	if err != nil {
		return nil, fmt.Errorf("datastore: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  storeClock,
		logger: logger,
		hub:    newHub(),
	}, nil
}

// Close closes the underlying pool. Outstanding feeds stop receiving.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Pool exposes the connection pool so the identity provider can keep
// its credential tables in the same database.
func (s *Store) Pool() *sqlitepool.Pool { return s.pool }

// Clock returns the store's time source.
func (s *Store) Clock() clock.Clock { return s.clock }

// mutation is the outcome of one row change inside a write
// transaction.
type mutation struct {
	table *table
	kind  EventKind
	old   row
	new   row
}

// write runs fn in an immediate transaction and, after commit,
// publishes a feed event for every mutation fn recorded. Deliveries
// are addressed inside the transaction so visibility checks see the
// write's own effects.
func (s *Store) write(ctx context.Context, tableName string, fn func(conn *sqlite.Conn, record func(mutation) error) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var pending [][]delivery
	err := s.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return fn(conn, func(m mutation) error {
			deliveries, err := s.address(conn, m)
			if err != nil {
				return err
			}
			pending = append(pending, deliveries)
			return nil
		})
	})
	if err != nil {
		return classify(tableName, err)
	}

	for _, deliveries := range pending {
		s.hub.publish(deliveries)
	}
	return nil
}

// address computes which feeds receive mutation m and in what form.
func (s *Store) address(conn *sqlite.Conn, m mutation) ([]delivery, error) {
	feeds := s.hub.snapshot(m.table.name)
	if len(feeds) == 0 {
		return []delivery{}, nil
	}

	oldPayload, err := m.old.marshal()
	if err != nil {
		return nil, err
	}
	newPayload, err := m.new.marshal()
	if err != nil {
		return nil, err
	}

	var deliveries []delivery
	for _, feed := range feeds {
		viewer := principal{user: feed.caller, admin: feed.admin}
		oldMatch, err := s.feedMatches(conn, viewer, feed, m.table, m.old)
		if err != nil {
			return nil, err
		}
		newMatch, err := s.feedMatches(conn, viewer, feed, m.table, m.new)
		if err != nil {
			return nil, err
		}

		event := Event{Table: m.table.name}
		switch {
		case m.kind == EventInsert && newMatch:
			event.Kind, event.New = EventInsert, newPayload
		case m.kind == EventUpdate && newMatch:
			event.Kind, event.New, event.Old = EventUpdate, newPayload, oldPayload
		case m.kind == EventUpdate && oldMatch:
			newVisible, err := viewer.visible(conn, m.table, m.new)
			if err != nil {
				return nil, err
			}
			if newVisible {
				// Still readable, no longer in the filter: the
				// subscriber sees the update and drops the row.
				event.Kind, event.New, event.Old = EventUpdate, newPayload, oldPayload
			} else {
				event.Kind, event.Old = EventDelete, oldPayload
			}
		case m.kind == EventDelete && oldMatch:
			event.Kind, event.Old = EventDelete, oldPayload
		default:
			continue
		}
		if !feed.subscription.wants(event.Kind) {
			continue
		}
		deliveries = append(deliveries, delivery{feed: feed, event: event})
	}
	return deliveries, nil
}

func (s *Store) feedMatches(conn *sqlite.Conn, viewer principal, feed *Feed, t *table, candidate row) (bool, error) {
	if candidate == nil {
		return false, nil
	}
	visible, err := viewer.visible(conn, t, candidate)
	if err != nil || !visible {
		return false, err
	}
	if feed.subscription.Filter == nil {
		return true, nil
	}
	return t.matches(*feed.subscription.Filter, candidate)
}

// readRow loads one row by key, or returns nil when absent.
func readRow(conn *sqlite.Conn, t *table, key string) (row, error) {
	var found row
	err := sqlitex.Execute(conn,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.selectList(), t.name, t.key),
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = t.scan(stmt)
				return nil
			},
		})
	return found, err
}

func (s *Store) selectRows(ctx context.Context, p principal, query Query) ([]codec.RawMessage, error) {
	t, err := lookupTable(query.Table)
	if err != nil {
		return nil, err
	}

	compiled := &compiledQuery{}
	if err := t.compileConditions(compiled, query.Where); err != nil {
		return nil, err
	}
	p.restrict(t, compiled)
	order, err := t.compileOrder(query.OrderBy)
	if err != nil {
		return nil, err
	}

	sql := "SELECT " + t.selectList() + " FROM " + t.name + compiled.where() + order
	if query.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	var rows []codec.RawMessage
	err = s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, sql, &sqlitex.ExecOptions{
			Args: compiled.args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload, err := t.scan(stmt).marshal()
				if err != nil {
					return err
				}
				rows = append(rows, payload)
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(t.name, err)
	}
	return rows, nil
}

// prepareInsert normalizes value and fills generated columns.
func (s *Store) prepareInsert(p principal, t *table, value any) (row, error) {
	fields, err := codec.Fields(value)
	if err != nil {
		return nil, &Error{Code: CodeInvalid, Table: t.name, Message: "cannot encode row", Err: err}
	}
	record, err := t.normalize(fields)
	if err != nil {
		return nil, err
	}

	if t.authored != "" && !p.admin {
		if author, _ := record[t.authored].(string); author == "" {
			record[t.authored] = p.user
		}
	}
	if key, _ := record[t.key].(string); key == "" {
		if !t.generateKey {
			return nil, newError(CodeInvalid, t.name, "%s is required", t.key)
		}
		record[t.key] = uuid.NewString()
	}
	now := clock.Timestamp(s.clock.Now())
	for _, name := range t.stamped {
		if stamp, _ := record[name].(string); stamp == "" {
			record[name] = now
		}
	}
	return record, nil
}

func insertRow(conn *sqlite.Conn, t *table, record row) (row, error) {
	names := make([]string, 0, len(record))
	for _, c := range t.columns {
		if _, ok := record[c.name]; ok {
			names = append(names, c.name)
		}
	}
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = bindValue(record[name])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), placeholders)
	if err := sqlitex.Execute(conn, sql, &sqlitex.ExecOptions{Args: args}); err != nil {
		return nil, err
	}
	key, _ := record[t.key].(string)
	return readRow(conn, t, key)
}

func updateRow(conn *sqlite.Conn, t *table, key string, patch row) (row, error) {
	if len(patch) > 0 {
		assignments := make([]string, 0, len(patch))
		args := make([]any, 0, len(patch)+1)
		for _, c := range t.columns {
			if value, ok := patch[c.name]; ok {
				assignments = append(assignments, c.name+" = ?")
				args = append(args, bindValue(value))
			}
		}
		args = append(args, key)
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.name, strings.Join(assignments, ", "), t.key)
		if err := sqlitex.Execute(conn, sql, &sqlitex.ExecOptions{Args: args}); err != nil {
			return nil, err
		}
	}
	return readRow(conn, t, key)
}

func deleteRow(conn *sqlite.Conn, t *table, key string) error {
	return sqlitex.Execute(conn,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.key),
		&sqlitex.ExecOptions{Args: []any{key}})
}

func (s *Store) insert(ctx context.Context, p principal, tableName string, value any) (codec.RawMessage, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	prepared, err := s.prepareInsert(p, t, value)
	if err != nil {
		return nil, err
	}

	var stored row
	err = s.write(ctx, t.name, func(conn *sqlite.Conn, record func(mutation) error) error {
		inserted, err := insertRow(conn, t, prepared)
		if err != nil {
			return err
		}
		stored = inserted
		return record(mutation{table: t, kind: EventInsert, new: inserted})
	})
	if err != nil {
		return nil, err
	}
	return stored.marshal()
}

// preparePatch normalizes an update patch and stamps touched columns
// the patch does not set itself.
func (s *Store) preparePatch(t *table, patch map[string]any) (row, error) {
	normalized, err := t.normalize(patch)
	if err != nil {
		return nil, err
	}
	if _, ok := normalized[t.key]; ok {
		return nil, newError(CodeInvalid, t.name, "cannot change %s", t.key)
	}
	now := clock.Timestamp(s.clock.Now())
	for _, name := range t.touched {
		if _, ok := normalized[name]; !ok {
			normalized[name] = now
		}
	}
	return normalized, nil
}

func (s *Store) update(ctx context.Context, p principal, tableName, key string, patch map[string]any) (Change, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return Change{}, err
	}
	normalized, err := s.preparePatch(t, patch)
	if err != nil {
		return Change{}, err
	}

	var before, after row
	err = s.write(ctx, t.name, func(conn *sqlite.Conn, record func(mutation) error) error {
		existing, err := readRow(conn, t, key)
		if err != nil {
			return err
		}
		if existing != nil {
			visible, err := p.visible(conn, t, existing)
			if err != nil {
				return err
			}
			if !visible {
				existing = nil
			}
		}
		if existing == nil {
			return newError(CodeNotFound, t.name, "no row %s", key)
		}
		updated, err := updateRow(conn, t, key, normalized)
		if err != nil {
			return err
		}
		before, after = existing, updated
		return record(mutation{table: t, kind: EventUpdate, old: existing, new: updated})
	})
	if err != nil {
		return Change{}, err
	}

	var change Change
	if change.Old, err = before.marshal(); err != nil {
		return Change{}, err
	}
	if change.New, err = after.marshal(); err != nil {
		return Change{}, err
	}
	return change, nil
}

func (s *Store) delete(ctx context.Context, p principal, tableName, key string) error {
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	return s.write(ctx, t.name, func(conn *sqlite.Conn, record func(mutation) error) error {
		existing, err := readRow(conn, t, key)
		if err != nil || existing == nil {
			return err
		}
		allowed, err := p.mayDelete(conn, t, existing)
		if err != nil || !allowed {
			return err
		}
		if err := deleteRow(conn, t, key); err != nil {
			return err
		}
		return record(mutation{table: t, kind: EventDelete, old: existing})
	})
}

func (s *Store) deleteWhere(ctx context.Context, p principal, tableName string, conditions []Condition) (int, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return 0, err
	}
	if len(conditions) == 0 {
		return 0, newError(CodeInvalid, t.name, "DeleteWhere requires at least one condition")
	}
	compiled := &compiledQuery{}
	if err := t.compileConditions(compiled, conditions); err != nil {
		return 0, err
	}
	p.restrict(t, compiled)

	deleted := 0
	err = s.write(ctx, t.name, func(conn *sqlite.Conn, record func(mutation) error) error {
		var matched []row
		err := sqlitex.Execute(conn,
			"SELECT "+t.selectList()+" FROM "+t.name+compiled.where()+" ORDER BY rowid",
			&sqlitex.ExecOptions{
				Args: compiled.args,
				ResultFunc: func(stmt *sqlite.Stmt) error {
					matched = append(matched, t.scan(stmt))
					return nil
				},
			})
		if err != nil {
			return err
		}
		for _, existing := range matched {
			allowed, err := p.mayDelete(conn, t, existing)
			if err != nil {
				return err
			}
			if !allowed {
				continue
			}
			key, _ := existing[t.key].(string)
			if err := deleteRow(conn, t, key); err != nil {
				return err
			}
			if err := record(mutation{table: t, kind: EventDelete, old: existing}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *Store) upsert(ctx context.Context, p principal, tableName string, value any, conflictColumn string) (codec.RawMessage, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, ok := t.column(conflictColumn); !ok {
		return nil, newError(CodeInvalid, t.name, "unknown conflict column %q", conflictColumn)
	}
	prepared, err := s.prepareInsert(p, t, value)
	if err != nil {
		return nil, err
	}
	conflictValue, _ := prepared[conflictColumn].(string)
	if conflictValue == "" {
		return nil, newError(CodeInvalid, t.name, "upsert requires a value for %s", conflictColumn)
	}

	var stored row
	err = s.write(ctx, t.name, func(conn *sqlite.Conn, recordMutation func(mutation) error) error {
		var existing row
		err := sqlitex.Execute(conn,
			fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", t.selectList(), t.name, conflictColumn),
			&sqlitex.ExecOptions{
				Args: []any{conflictValue},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					existing = t.scan(stmt)
					return nil
				},
			})
		if err != nil {
			return err
		}

		if existing == nil {
			inserted, err := insertRow(conn, t, prepared)
			if err != nil {
				return err
			}
			stored = inserted
			return recordMutation(mutation{table: t, kind: EventInsert, new: inserted})
		}

		if visible, err := p.visible(conn, t, existing); err != nil || !visible {
			if err == nil {
				err = newError(CodeConflict, t.name, "%s %s exists", conflictColumn, conflictValue)
			}
			return err
		}
		patch := make(row, len(prepared))
		for name, value := range prepared {
			// Keep the existing identity and creation stamps.
			if name == t.key || (t.isStamped(name) && !t.isTouched(name)) {
				continue
			}
			patch[name] = value
		}
		key, _ := existing[t.key].(string)
		updated, err := updateRow(conn, t, key, patch)
		if err != nil {
			return err
		}
		stored = updated
		return recordMutation(mutation{table: t, kind: EventUpdate, old: existing, new: updated})
	})
	if err != nil {
		return nil, err
	}
	return stored.marshal()
}

func (s *Store) subscribe(ctx context.Context, p principal, subscription Subscription) (*Feed, error) {
	t, err := lookupTable(subscription.Table)
	if err != nil {
		return nil, err
	}
	if filter := subscription.Filter; filter != nil {
		if filter.Op != OpEq {
			return nil, newError(CodeInvalid, t.name, "feed filters support eq only, got %s", filter.Op)
		}
		if _, ok := t.column(filter.Column); !ok {
			return nil, newError(CodeInvalid, t.name, "unknown column %q in feed filter", filter.Column)
		}
	}
	for _, kind := range subscription.Events {
		switch kind {
		case EventInsert, EventUpdate, EventDelete:
		default:
			return nil, newError(CodeInvalid, t.name, "unknown event kind %q", kind)
		}
	}

	feed := &Feed{
		subscription: subscription,
		caller:       p.user,
		admin:        p.admin,
		channel:      make(chan Event, feedBufferSize),
		signal:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		hub:          s.hub,
	}
	s.hub.add(feed)
	context.AfterFunc(ctx, feed.Release)

	s.logger.Debug("feed subscribed", "table", t.name, "user_id", p.user, "filter", subscription.Filter)
	return feed, nil
}
