// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"sync"
)

// ChangeKind is a session transition.
type ChangeKind string

const (
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
)

// Change reports a session transition. UserID is the user signed in,
// or the user who signed out.
type Change struct {
	Kind   ChangeKind
	UserID string
}

// watcherBufferSize bounds undelivered session changes per watcher.
const watcherBufferSize = 16

// Session is one client's authentication state. Its User method is
// the caller function handed to the datastore.
type Session struct {
	provider *Provider

	mu       sync.Mutex
	userID   string
	token    string
	watchers map[*Watcher]struct{}
}

// NewSession returns a signed-out session.
func (p *Provider) NewSession() *Session {
	return &Session{provider: p, watchers: make(map[*Watcher]struct{})}
}

// SignUp registers a new user and signs in as them.
func (s *Session) SignUp(ctx context.Context, email, password, fullName string) error {
	userID, err := s.provider.register(ctx, email, password, fullName)
	if err != nil {
		return err
	}
	return s.start(ctx, userID)
}

// SignIn checks the credential and signs in, replacing any current
// session.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	userID, err := s.provider.authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	return s.start(ctx, userID)
}

// Resume signs in with a token from an earlier session.
func (s *Session) Resume(ctx context.Context, token string) error {
	userID, err := s.provider.resolve(ctx, token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	previous := s.userID
	s.userID, s.token = userID, token
	s.mu.Unlock()

	if previous != "" && previous != userID {
		s.notify(Change{Kind: SignedOut, UserID: previous})
	}
	if previous != userID {
		s.notify(Change{Kind: SignedIn, UserID: userID})
	}
	return nil
}

// SignOut revokes the token and clears the session. Signing out with
// no session is a no-op.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	userID, token := s.userID, s.token
	s.userID, s.token = "", ""
	s.mu.Unlock()

	if userID == "" {
		return nil
	}
	s.notify(Change{Kind: SignedOut, UserID: userID})
	s.provider.logger.Info("signed out", "user_id", userID)
	return s.provider.revoke(ctx, token)
}

func (s *Session) start(ctx context.Context, userID string) error {
	token, err := s.provider.issue(ctx, userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	previous, previousToken := s.userID, s.token
	s.userID, s.token = userID, token
	s.mu.Unlock()

	if previous != "" {
		s.notify(Change{Kind: SignedOut, UserID: previous})
		if err := s.provider.revoke(ctx, previousToken); err != nil {
			s.provider.logger.Warn("revoking replaced session failed", "user_id", previous, "error", err)
		}
	}
	s.notify(Change{Kind: SignedIn, UserID: userID})
	s.provider.logger.Info("signed in", "user_id", userID)
	return nil
}

// User returns the signed-in user ID.
func (s *Session) User() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// Token returns the bearer token for the current session, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Watcher receives session changes until released.
type Watcher struct {
	session *Session
	changes chan Change
	once    sync.Once
}

// Watch registers a change stream. When a user is already signed in
// the stream starts with a SignedIn change for them.
func (s *Session) Watch() *Watcher {
	watcher := &Watcher{session: s, changes: make(chan Change, watcherBufferSize)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[watcher] = struct{}{}
	if s.userID != "" {
		watcher.changes <- Change{Kind: SignedIn, UserID: s.userID}
	}
	return watcher
}

// Changes delivers session transitions. It is closed by Release.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Release unregisters the watcher and closes its channel. Idempotent.
func (w *Watcher) Release() {
	w.once.Do(func() {
		w.session.mu.Lock()
		defer w.session.mu.Unlock()
		delete(w.session.watchers, w)
		close(w.changes)
	})
}

// notify fans a change out without blocking. A watcher that has let
// its buffer fill loses the change.
func (s *Session) notify(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for watcher := range s.watchers {
		select {
		case watcher.changes <- change:
		default:
			s.provider.logger.Warn("session watcher full, dropping change", "kind", change.Kind, "user_id", change.UserID)
		}
	}
}
