// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// principal is who an operation runs as. The identity provider's
// admin client bypasses the row policy; every other client acts as a
// signed-in user.
type principal struct {
	user  string
	admin bool
}

// Row policy:
//
//   - A task is visible to its creator, its assignee, and members of
//     its team. Invisible tasks cannot be updated (NotFound) and
//     deleting one is a no-op.
//   - A comment may only be deleted by its author.
//   - Every other row is visible to every signed-in user.

// taskVisibilitySQL restricts a tasks query to the caller's visible
// rows. It binds the caller three times.
const taskVisibilitySQL = `(created_by = ? OR assignee_id = ? OR team_id IN (SELECT team_id FROM team_members WHERE user_id = ?))`

// restrict appends the read policy for p to a compiled query on t.
func (p principal) restrict(t *table, compiled *compiledQuery) {
	if p.admin || t.name != TableTasks {
		return
	}
	compiled.add(taskVisibilitySQL, p.user, p.user, p.user)
}

// visible reports whether p may read candidate from t.
func (p principal) visible(conn *sqlite.Conn, t *table, candidate row) (bool, error) {
	if p.admin || t.name != TableTasks {
		return true, nil
	}
	if candidate["created_by"] == p.user || candidate["assignee_id"] == p.user {
		return true, nil
	}
	teamID, ok := candidate["team_id"].(string)
	if !ok {
		return false, nil
	}
	return isMember(conn, teamID, p.user)
}

// mayDelete reports whether p may delete existing. A false result
// with a nil error means the delete should silently do nothing.
func (p principal) mayDelete(conn *sqlite.Conn, t *table, existing row) (bool, error) {
	if p.admin {
		return true, nil
	}
	switch t.name {
	case TableTasks:
		return p.visible(conn, t, existing)
	case TableComments:
		if existing["user_id"] != p.user {
			return false, newError(CodeAuthRequired, t.name, "only the author may delete comment %v", existing["id"])
		}
	}
	return true, nil
}

func isMember(conn *sqlite.Conn, teamID, userID string) (bool, error) {
	member := false
	err := sqlitex.Execute(conn,
		"SELECT 1 FROM team_members WHERE team_id = ? AND user_id = ? LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{teamID, userID},
			ResultFunc: func(*sqlite.Stmt) error {
				member = true
				return nil
			},
		})
	return member, err
}
