// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package teamsync

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/teamflow/lib/datastore"
	"github.com/bureau-foundation/teamflow/lib/schema/planner"
	"github.com/bureau-foundation/teamflow/lib/syncer"
)

// Team is a team joined with its owner's profile.
type Team = syncer.Joined[planner.Team]

// Member is a membership joined with the member's profile.
type Member = syncer.Joined[planner.TeamMember]

// Config holds a Synchronizer's collaborators. Data is required.
type Config struct {
	Data   datastore.DataService
	Logger *slog.Logger
}

// Synchronizer owns the team list and the current team's members.
// Safe for concurrent use.
type Synchronizer struct {
	data     datastore.DataService
	logger   *slog.Logger
	notifier *syncer.Notifier

	ctx    context.Context
	cancel context.CancelFunc

	// memberScope numbers current-team selections.
	memberScope syncer.Scope
	// teamScope numbers team list fetches.
	teamScope syncer.Scope

	mu            sync.Mutex
	teams         []Team
	current       string
	defaulted     bool
	members       []Member
	teamWatcher   *syncer.Watcher
	memberWatcher *syncer.Watcher
}

// New returns an empty synchronizer. Call LoadTeams to populate it.
func New(cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		data:     cfg.Data,
		logger:   logger,
		notifier: syncer.NewNotifier(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// LoadTeams fetches every team the caller belongs to, oldest first,
// joined with owner profiles. The first time the list is non-empty
// its first team becomes current, unless a team is already selected.
func (s *Synchronizer) LoadTeams(ctx context.Context) error {
	caller, ok := s.data.Caller()
	if !ok {
		return &syncer.FetchError{Collection: datastore.TableTeams, Err: datastore.ErrAuthRequired}
	}
	if err := s.watchMemberships(caller); err != nil {
		return &syncer.FetchError{Collection: datastore.TableTeams, Err: err}
	}

	generation := s.teamScope.Advance()
	teams, err := s.fetchTeams(ctx, caller)
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableTeams, Err: err}
	}

	s.mu.Lock()
	if !s.teamScope.IsCurrent(generation) {
		s.mu.Unlock()
		return nil
	}
	s.teams = teams
	selectFirst := ""
	if !s.defaulted && len(teams) > 0 {
		s.defaulted = true
		if s.current == "" {
			selectFirst = teams[0].Row.ID
		}
	}
	s.mu.Unlock()
	s.notifier.Notify()

	if selectFirst != "" {
		return s.SelectTeam(ctx, selectFirst)
	}
	return nil
}

func (s *Synchronizer) fetchTeams(ctx context.Context, caller string) ([]Team, error) {
	rows, err := s.data.Select(ctx, datastore.From(datastore.TableTeamMembers).
		Filter(datastore.Eq("user_id", caller)))
	if err != nil {
		return nil, err
	}
	memberships, err := datastore.DecodeAll[planner.TeamMember](rows)
	if err != nil {
		return nil, err
	}
	teamIDs := syncer.DistinctKeys(memberships, func(member planner.TeamMember) string { return member.TeamID })

	rows, err = s.data.Select(ctx, datastore.From(datastore.TableTeams).
		Filter(datastore.In("id", teamIDs...)).
		Sort(datastore.Asc("created_at")))
	if err != nil {
		return nil, err
	}
	teams, err := datastore.DecodeAll[planner.Team](rows)
	if err != nil {
		return nil, err
	}
	return syncer.FetchAndJoin(ctx, s.data, teams, func(team planner.Team) string { return team.OwnerID })
}

// watchMemberships subscribes once to the caller's own membership
// rows so joining or leaving a team refreshes the team list.
func (s *Synchronizer) watchMemberships(caller string) error {
	s.mu.Lock()
	running := s.teamWatcher != nil
	s.mu.Unlock()
	if running {
		return nil
	}

	filter := datastore.Eq("user_id", caller)
	watcher, err := syncer.Watch(s.ctx, s.data,
		datastore.Subscription{Table: datastore.TableTeamMembers, Filter: &filter},
		syncer.Handlers{
			Event:  func(datastore.Event) { s.refreshTeams() },
			Resync: s.refreshTeams,
		},
		s.logger.With("table", datastore.TableTeamMembers, "scope", "caller"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.teamWatcher != nil {
		s.mu.Unlock()
		watcher.Stop()
		return nil
	}
	s.teamWatcher = watcher
	s.mu.Unlock()
	return nil
}

func (s *Synchronizer) refreshTeams() {
	if err := s.LoadTeams(s.ctx); err != nil {
		s.logger.Warn("team refresh failed", "error", err)
	}
}

// SelectTeam makes teamID current: it re-fetches the member list and
// moves the membership feed to the new team. An empty teamID clears
// the selection.
func (s *Synchronizer) SelectTeam(ctx context.Context, teamID string) error {
	generation := s.memberScope.Advance()

	var watcher *syncer.Watcher
	if teamID != "" {
		filter := datastore.Eq("team_id", teamID)
		var err error
		watcher, err = syncer.Watch(s.ctx, s.data,
			datastore.Subscription{Table: datastore.TableTeamMembers, Filter: &filter},
			syncer.Handlers{
				Event:  func(datastore.Event) { s.refreshMembers(generation, teamID) },
				Resync: func() { s.refreshMembers(generation, teamID) },
			},
			s.logger.With("table", datastore.TableTeamMembers, "team_id", teamID))
		if err != nil {
			return &syncer.FetchError{Collection: datastore.TableTeamMembers, Err: err}
		}
	}

	s.mu.Lock()
	if !s.memberScope.IsCurrent(generation) {
		s.mu.Unlock()
		if watcher != nil {
			watcher.Stop()
		}
		return nil
	}
	previous := s.memberWatcher
	s.current, s.memberWatcher, s.members = teamID, watcher, nil
	s.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
	s.notifier.Notify()

	if teamID == "" {
		return nil
	}
	return s.loadMembers(ctx, generation, teamID)
}

func (s *Synchronizer) loadMembers(ctx context.Context, generation uint64, teamID string) error {
	rows, err := s.data.Select(ctx, datastore.From(datastore.TableTeamMembers).
		Filter(datastore.Eq("team_id", teamID)).
		Sort(datastore.Asc("joined_at")))
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableTeamMembers, Err: err}
	}
	memberships, err := datastore.DecodeAll[planner.TeamMember](rows)
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableTeamMembers, Err: err}
	}
	members, err := syncer.FetchAndJoin(ctx, s.data, memberships, func(member planner.TeamMember) string { return member.UserID })
	if err != nil {
		return &syncer.FetchError{Collection: datastore.TableProfiles, Err: err}
	}

	s.mu.Lock()
	if !s.memberScope.IsCurrent(generation) {
		s.mu.Unlock()
		s.logger.Debug("discarding members of a deselected team", "team_id", teamID)
		return nil
	}
	s.members = members
	s.mu.Unlock()
	s.notifier.Notify()
	return nil
}

func (s *Synchronizer) refreshMembers(generation uint64, teamID string) {
	if err := s.loadMembers(s.ctx, generation, teamID); err != nil {
		s.logger.Warn("member refresh failed", "team_id", teamID, "error", err)
	}
}

// reloadCurrentMembers re-fetches members if teamID is current.
func (s *Synchronizer) reloadCurrentMembers(ctx context.Context, teamID string) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != teamID {
		return nil
	}
	return s.loadMembers(ctx, s.memberScope.Current(), teamID)
}

// Teams returns the caller's teams.
func (s *Synchronizer) Teams() []Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.teams)
}

// CurrentTeam returns the selected team, if it is in the loaded list.
func (s *Synchronizer) CurrentTeam() (Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, team := range s.teams {
		if team.Row.ID == s.current {
			return team, true
		}
	}
	return Team{}, false
}

// CurrentTeamID returns the selected team ID, or "".
func (s *Synchronizer) CurrentTeamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Members returns the current team's members, earliest joined first.
func (s *Synchronizer) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// Changed receives after teams, the selection, or members change.
func (s *Synchronizer) Changed() <-chan struct{} { return s.notifier.C() }

// Close releases both feeds.
func (s *Synchronizer) Close() {
	s.memberScope.Advance()
	s.teamScope.Advance()
	s.cancel()
	s.mu.Lock()
	watchers := []*syncer.Watcher{s.teamWatcher, s.memberWatcher}
	s.teamWatcher, s.memberWatcher = nil, nil
	s.mu.Unlock()
	for _, watcher := range watchers {
		if watcher != nil {
			watcher.Stop()
		}
	}
}
