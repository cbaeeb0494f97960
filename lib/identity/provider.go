// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/sqlitepool"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

const credentialSchema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	digest     TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT
);
CREATE INDEX IF NOT EXISTS auth_sessions_user ON auth_sessions (user_id);
`

// Config holds the provider's collaborators. Store is required.
type Config struct {
	Store *datastore.Store

	// SessionTTL bounds token lifetime. Zero means tokens last until
	// sign-out.
	SessionTTL time.Duration

	// Argon2 overrides DefaultArgon2 when non-zero.
	Argon2 Argon2Params

	Logger *slog.Logger
}

// Provider owns the credential tables. It is shared by every Session.
type Provider struct {
	pool       *sqlitepool.Pool
	profiles   *datastore.Client
	clock      clock.Clock
	sessionTTL time.Duration
	argon2     Argon2Params
	logger     *slog.Logger
}

// New creates the credential tables if needed.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Store == nil {
		return nil, errors.New("identity: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	params := cfg.Argon2
	if params == (Argon2Params{}) {
		params = DefaultArgon2
	}

	pool := cfg.Store.Pool()
	err := pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, credentialSchema, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("identity: creating credential tables: %w", err)
	}

	return &Provider{
		pool:       pool,
		profiles:   cfg.Store.Admin(),
		clock:      cfg.Store.Clock(),
		sessionTTL: cfg.SessionTTL,
		argon2:     params,
		logger:     logger,
	}, nil
}

// NormalizeEmail trims and lowercases an address and checks its
// syntax.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	address, err := mail.ParseAddress(normalized)
	if err != nil || address.Address != normalized {
		return "", &datastore.Error{Code: datastore.CodeInvalid, Table: "auth_users", Message: fmt.Sprintf("invalid email %q", email)}
	}
	return normalized, nil
}

// register creates a credential and its profile row and returns the
// new user ID.
func (p *Provider) register(ctx context.Context, email, password, fullName string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if len(password) < MinPasswordLength {
		return "", &datastore.Error{
			Code:    datastore.CodeInvalid,
			Table:   "auth_users",
			Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}
	hash, err := hashPassword(password, p.argon2)
	if err != nil {
		return "", err
	}

	userID := uuid.NewString()
	now := clock.Timestamp(p.clock.Now())
	err = p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO auth_users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{userID, email, hash.encode(), now}})
	})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return "", &datastore.Error{Code: datastore.CodeConflict, Table: "auth_users", Message: "email already registered"}
		}
		return "", &datastore.Error{Code: datastore.CodeTransport, Table: "auth_users", Message: "storing credential", Err: err}
	}

	_, err = p.profiles.Insert(ctx, datastore.TableProfiles, planner.Profile{
		ID:       userID,
		Email:    email,
		FullName: strings.TrimSpace(fullName),
	})
	if err != nil {
		// Without a profile the user cannot be found or joined; drop
		// the credential so the address can register again.
		cleanupErr := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
			return sqlitex.Execute(conn, "DELETE FROM auth_users WHERE id = ?", &sqlitex.ExecOptions{Args: []any{userID}})
		})
		return "", errors.Join(fmt.Errorf("identity: creating profile: %w", err), cleanupErr)
	}

	p.logger.Info("user registered", "user_id", userID)
	return userID, nil
}

// authenticate checks a credential and returns its user ID.
func (p *Provider) authenticate(ctx context.Context, email, password string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var userID, encoded string
	err := p.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, password_hash FROM auth_users WHERE email = ?",
			&sqlitex.ExecOptions{
				Args: []any{normalized},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					userID, encoded = stmt.ColumnText(0), stmt.ColumnText(1)
					return nil
				},
			})
	})
	if err != nil {
		return "", &datastore.Error{Code: datastore.CodeTransport, Table: "auth_users", Message: "reading credential", Err: err}
	}

	invalid := &datastore.Error{Code: datastore.CodeAuthRequired, Table: "auth_users", Message: "invalid email or password"}
	if userID == "" {
		return "", invalid
	}
	hash, err := decodePasswordHash(encoded)
	if err != nil {
		return "", &datastore.Error{Code: datastore.CodeTransport, Table: "auth_users", Message: "corrupt credential", Err: err}
	}
	if !hash.verify(password) {
		return "", invalid
	}
	return userID, nil
}

// issue creates a session token for userID.
func (p *Provider) issue(ctx context.Context, userID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	now := p.clock.Now()
	var expires any
	if p.sessionTTL > 0 {
		expires = clock.Timestamp(now.Add(p.sessionTTL))
	}
	err = p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO auth_sessions (digest, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{tokenDigest(token), userID, clock.Timestamp(now), expires}})
	})
	if err != nil {
		return "", &datastore.Error{Code: datastore.CodeTransport, Table: "auth_sessions", Message: "storing session", Err: err}
	}
	return token, nil
}

// resolve returns the user a live token belongs to.
func (p *Provider) resolve(ctx context.Context, token string) (string, error) {
	var userID string
	now := clock.Timestamp(p.clock.Now())
	err := p.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT user_id FROM auth_sessions WHERE digest = ? AND (expires_at IS NULL OR expires_at > ?)",
			&sqlitex.ExecOptions{
				Args: []any{tokenDigest(token), now},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					userID = stmt.ColumnText(0)
					return nil
				},
			})
	})
	if err != nil {
		return "", &datastore.Error{Code: datastore.CodeTransport, Table: "auth_sessions", Message: "reading session", Err: err}
	}
	if userID == "" {
		return "", &datastore.Error{Code: datastore.CodeAuthRequired, Table: "auth_sessions", Message: "session expired or revoked"}
	}
	return userID, nil
}

// revoke deletes a token. Unknown tokens are ignored.
func (p *Provider) revoke(ctx context.Context, token string) error {
	err := p.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM auth_sessions WHERE digest = ?",
			&sqlitex.ExecOptions{Args: []any{tokenDigest(token)}})
	})
	if err != nil {
		return &datastore.Error{Code: datastore.CodeTransport, Table: "auth_sessions", Message: "revoking session", Err: err}
	}
	return nil
}
