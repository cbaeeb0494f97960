// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
)

// Collection names.
const (
	TableTasks       = "tasks"
	TableTeams       = "teams"
	TableTeamMembers = "team_members"
	TableComments    = "comments"
	TablePresence    = "presence"
	TableTaskHistory = "task_history"
	TableProfiles    = "profiles"
)

// Tables lists every collection in dependency order: a table never
// references a table later in the list.
func Tables() []string {
	return []string{
		TableProfiles,
		TableTeams,
		TableTeamMembers,
		TableTasks,
		TableComments,
		TableTaskHistory,
		TablePresence,
	}
}

type columnKind int

const (
	kindText columnKind = iota
	kindNullText
	kindBool
)

type column struct {
	name string
	kind columnKind
}

// table describes one collection's columns. key is the column Update
// and Delete address rows by; it is assigned a UUID on insert when
// the caller leaves it empty, except for presence which is keyed by
// its user.
type table struct {
	name    string
	key     string
	columns []column

	// stamped columns are set to the commit time on insert when empty.
	stamped []string
	// touched columns are set to the commit time on every update.
	touched []string
	// authored is set to the caller's user ID on insert when empty.
	authored string
	// generateKey assigns a UUID to key on insert when empty.
	generateKey bool
}

var tables = map[string]*table{
	TableTasks: {
		name: TableTasks,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"title", kindText},
			{"description", kindText},
			{"priority", kindText},
			{"status", kindText},
			{"deadline", kindNullText},
			{"assignee_id", kindNullText},
			{"created_by", kindText},
			{"team_id", kindNullText},
			{"is_private", kindBool},
			{"created_at", kindText},
			{"updated_at", kindText},
		},
		stamped:     []string{"created_at", "updated_at"},
		touched:     []string{"updated_at"},
		authored:    "created_by",
		generateKey: true,
	},
	TableTeams: {
		name: TableTeams,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"name", kindText},
			{"description", kindText},
			{"owner_id", kindText},
			{"created_at", kindText},
			{"updated_at", kindText},
		},
		stamped:     []string{"created_at", "updated_at"},
		touched:     []string{"updated_at"},
		authored:    "owner_id",
		generateKey: true,
	},
	TableTeamMembers: {
		name: TableTeamMembers,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"team_id", kindText},
			{"user_id", kindText},
			{"role", kindText},
			{"joined_at", kindText},
		},
		stamped:     []string{"joined_at"},
		generateKey: true,
	},
	TableComments: {
		name: TableComments,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"task_id", kindText},
			{"user_id", kindText},
			{"content", kindText},
			{"created_at", kindText},
		},
		stamped:     []string{"created_at"},
		authored:    "user_id",
		generateKey: true,
	},
	TablePresence: {
		name: TablePresence,
		key:  "user_id",
		columns: []column{
			{"user_id", kindText},
			{"last_seen", kindText},
		},
		stamped:  []string{"last_seen"},
		touched:  []string{"last_seen"},
		authored: "user_id",
	},
	TableTaskHistory: {
		name: TableTaskHistory,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"task_id", kindText},
			{"user_id", kindText},
			{"action", kindText},
			{"old_value", kindNullText},
			{"new_value", kindNullText},
			{"created_at", kindText},
		},
		stamped:     []string{"created_at"},
		authored:    "user_id",
		generateKey: true,
	},
	TableProfiles: {
		name: TableProfiles,
		key:  "id",
		columns: []column{
			{"id", kindText},
			{"email", kindText},
			{"full_name", kindText},
			{"avatar_url", kindText},
			{"created_at", kindText},
			{"updated_at", kindText},
		},
		stamped:     []string{"created_at", "updated_at"},
		touched:     []string{"updated_at"},
		generateKey: true,
	},
}

// schemaSQL creates every collection. Enum columns carry CHECK
// constraints so invalid values fail as CodeInvalid.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	email       TEXT NOT NULL UNIQUE,
	full_name   TEXT NOT NULL DEFAULT '',
	avatar_url  TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL CHECK (name <> ''),
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	id        TEXT PRIMARY KEY,
	team_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	role      TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'member')),
	joined_at TEXT NOT NULL,
	UNIQUE (team_id, user_id)
);
CREATE INDEX IF NOT EXISTS team_members_user ON team_members (user_id);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'medium'
	            CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
	status      TEXT NOT NULL DEFAULT 'todo'
	            CHECK (status IN ('todo', 'in-progress', 'review', 'done')),
	deadline    TEXT,
	assignee_id TEXT,
	created_by  TEXT NOT NULL,
	team_id     TEXT,
	is_private  INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	CHECK (is_private = (team_id IS NULL))
);
CREATE INDEX IF NOT EXISTS tasks_created ON tasks (created_at);
CREATE INDEX IF NOT EXISTS tasks_team ON tasks (team_id);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_task ON comments (task_id, created_at);

CREATE TABLE IF NOT EXISTS task_history (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL
	           CHECK (action IN ('created', 'status_changed', 'priority_changed')),
	old_value  TEXT,
	new_value  TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS task_history_task ON task_history (task_id);

CREATE TABLE IF NOT EXISTS presence (
	user_id   TEXT PRIMARY KEY,
	last_seen TEXT NOT NULL
);
`

func lookupTable(name string) (*table, error) {
	definition, ok := tables[name]
	if !ok {
		return nil, newError(CodeInvalid, name, "unknown table")
	}
	return definition, nil
}

func (t *table) column(name string) (column, bool) {
	for _, candidate := range t.columns {
		if candidate.name == name {
			return candidate, true
		}
	}
	return column{}, false
}

func (t *table) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

func (t *table) isStamped(name string) bool { return slices.Contains(t.stamped, name) }

func (t *table) isTouched(name string) bool { return slices.Contains(t.touched, name) }

// selectList is the column list for SELECT statements.
func (t *table) selectList() string {
	return strings.Join(t.columnNames(), ", ")
}

// scan reads one result row in column order into a field map.
func (t *table) scan(stmt *sqlite.Stmt) row {
	result := make(row, len(t.columns))
	for i, c := range t.columns {
		switch c.kind {
		case kindText:
			result[c.name] = stmt.ColumnText(i)
		case kindNullText:
			if stmt.ColumnType(i) == sqlite.TypeNull {
				result[c.name] = nil
			} else {
				result[c.name] = stmt.ColumnText(i)
			}
		case kindBool:
			result[c.name] = stmt.ColumnInt(i) != 0
		}
	}
	return result
}

// coerce converts a caller-supplied value to the column's canonical Go
// representation: string, nil, or bool. Named string types (enums)
// and string pointers are accepted. An empty string in a nullable
// column becomes nil.
func (c column) coerce(tableName string, value any) (any, error) {
	if value == nil {
		switch c.kind {
		case kindNullText:
			return nil, nil
		case kindText:
			return "", nil
		}
		return nil, newError(CodeInvalid, tableName, "column %s cannot be null", c.name)
	}

	reflected := reflect.ValueOf(value)
	if reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return c.coerce(tableName, nil)
		}
		reflected = reflected.Elem()
	}

	switch c.kind {
	case kindText, kindNullText:
		if reflected.Kind() != reflect.String {
			return nil, newError(CodeInvalid, tableName, "column %s wants a string, got %T", c.name, value)
		}
		text := reflected.String()
		if text == "" && c.kind == kindNullText {
			return nil, nil
		}
		return text, nil
	case kindBool:
		if reflected.Kind() != reflect.Bool {
			return nil, newError(CodeInvalid, tableName, "column %s wants a bool, got %T", c.name, value)
		}
		return reflected.Bool(), nil
	}
	return nil, fmt.Errorf("datastore: column %s has unknown kind %d", c.name, c.kind)
}

// bindValue converts a canonical value to a SQLite argument.
func bindValue(value any) any {
	if flag, ok := value.(bool); ok {
		if flag {
			return 1
		}
		return 0
	}
	return value
}

// normalize coerces every field against the table's columns, rejecting
// unknown names.
func (t *table) normalize(fields map[string]any) (row, error) {
	result := make(row, len(fields))
	for name, value := range fields {
		c, ok := t.column(name)
		if !ok {
			return nil, newError(CodeInvalid, t.name, "unknown column %q", name)
		}
		coerced, err := c.coerce(t.name, value)
		if err != nil {
			return nil, err
		}
		result[name] = coerced
	}
	return result, nil
}
