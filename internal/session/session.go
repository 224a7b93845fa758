// Package session holds the in-memory source of truth for goals, check-ins
// and kudos seen by one authenticated user. All mutations funnel through a
// Session so every cached collection stays a projection of the authoritative
// record store: collaborator calls settle first, the cache applies after, and
// a failed call leaves the collections untouched.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pact-proof-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// DefaultFeedWindow bounds the cached feed to the most recent check-ins.
const DefaultFeedWindow = 30

// checkInsLimit bounds goal-scoped check-in listings.
const checkInsLimit = 50

// RecordStore is the persistence collaborator backing a session. Implemented
// by the pgx repositories; faked in tests.
type RecordStore interface {
	ListGoals(ctx context.Context, ownerID string) ([]*models.Goal, error)
	InsertGoal(ctx context.Context, ownerID string, input models.CreateGoalInput) (*models.Goal, error)
	UpdateGoal(ctx context.Context, id string, upd models.GoalUpdate) (*models.Goal, error)
	DeleteGoal(ctx context.Context, id string) error

	ListFeed(ctx context.Context, limit int) ([]*models.CheckIn, error)
	ListCheckIns(ctx context.Context, goalID string, limit int) ([]*models.CheckIn, error)
	InsertCheckIn(ctx context.Context, userID string, input models.CreateCheckInInput) (*models.CheckIn, error)

	FindKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error)
	InsertKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error)
	DeleteKudos(ctx context.Context, id string) error

	ListCrews(ctx context.Context, userID string) ([]*models.Crew, []*models.CrewMember, error)
	InsertCrew(ctx context.Context, name, userID string) (*models.Crew, error)
	JoinCrew(ctx context.Context, inviteCode, userID string) (*models.Crew, error)
	LeaveCrew(ctx context.Context, crewID, userID string) error
}

// Session is the consistency cache for one user. Collections are replaced
// wholesale on fetch and mutated only after the record store succeeded, so no
// reader ever observes a half-applied change.
type Session struct {
	userID     string
	store      RecordStore
	feedWindow int

	mu      sync.Mutex
	goals   []*models.Goal
	feed    []*models.CheckIn
	crews   []*models.Crew
	members []*models.CrewMember

	// toggles serializes kudos toggles per (check-in, user) pair so the
	// existence check and the insert/delete behave as one logical step.
	togglesMu sync.Mutex
	toggles   map[string]*sync.Mutex
}

// New creates a session for the given user backed by the record store.
func New(userID string, store RecordStore, feedWindow int) *Session {
	if feedWindow <= 0 {
		feedWindow = DefaultFeedWindow
	}
	return &Session{
		userID:     userID,
		store:      store,
		feedWindow: feedWindow,
		toggles:    make(map[string]*sync.Mutex),
	}
}

// UserID returns the session's user.
func (s *Session) UserID() string {
	return s.userID
}

// Goals returns the cached goals, newest first.
func (s *Session) Goals() []*models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Goal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Feed returns the cached feed, newest first. Returned records are stable:
// later mutations swap in fresh copies instead of writing through the
// pointers a snapshot holds.
func (s *Session) Feed() []*models.CheckIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CheckIn, len(s.feed))
	copy(out, s.feed)
	return out
}

// Crews returns the cached crews and memberships.
func (s *Session) Crews() ([]*models.Crew, []*models.CrewMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	crews := make([]*models.Crew, len(s.crews))
	copy(crews, s.crews)
	members := make([]*models.CrewMember, len(s.members))
	copy(members, s.members)
	return crews, members
}

// FetchGoals replaces the goals collection from the record store. On failure
// the previously cached goals stay in place.
func (s *Session) FetchGoals(ctx context.Context) error {
	goals, err := s.store.ListGoals(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("failed to fetch goals: %w", err)
	}
	s.mu.Lock()
	s.goals = goals
	s.mu.Unlock()
	return nil
}

// FetchFeed replaces the feed collection with the most recent check-ins. A
// full refresh invalidates any stale optimistic entries; on failure the prior
// feed stays in place.
func (s *Session) FetchFeed(ctx context.Context) error {
	checkIns, err := s.store.ListFeed(ctx, s.feedWindow)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}
	s.mu.Lock()
	s.feed = checkIns
	s.mu.Unlock()
	return nil
}

// FetchCheckIns replaces the feed collection with check-ins for one goal.
func (s *Session) FetchCheckIns(ctx context.Context, goalID string) error {
	checkIns, err := s.store.ListCheckIns(ctx, goalID, checkInsLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch check-ins: %w", err)
	}
	s.mu.Lock()
	s.feed = checkIns
	s.mu.Unlock()
	return nil
}

// CreateGoal persists a goal and prepends the authoritative record to the
// cached goals. The returned record's creation timestamp orders the
// collection, not a client guess.
func (s *Session) CreateGoal(ctx context.Context, input models.CreateGoalInput) (*models.Goal, error) {
	if s.userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	goal, err := s.store.InsertGoal(ctx, s.userID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	s.mu.Lock()
	s.goals = append([]*models.Goal{goal}, s.goals...)
	s.mu.Unlock()
	return goal, nil
}

// UpdateGoal persists the update and applies the authoritative record to the
// cached collection.
func (s *Session) UpdateGoal(ctx context.Context, id string, upd models.GoalUpdate) (*models.Goal, error) {
	if s.userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	goal, err := s.store.UpdateGoal(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	s.mu.Lock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals[i] = goal
			break
		}
	}
	s.mu.Unlock()
	return goal, nil
}

// DeleteGoal removes the goal from the record store and the cache. Check-ins
// referencing it are orphaned, not cascaded, by this layer.
func (s *Session) DeleteGoal(ctx context.Context, id string) error {
	if s.userID == "" {
		return models.ErrNoCurrentUser
	}
	if err := s.store.DeleteGoal(ctx, id); err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	s.mu.Lock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i:i], s.goals[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// CreateCheckIn persists the check-in, prepends the authoritative record to
// the feed with a fresh empty reaction aggregate, then refreshes the goals so
// streak changes propagate. The prepend precedes the refresh; a failed
// refresh keeps the prior goals and is not an error for the creation itself.
func (s *Session) CreateCheckIn(ctx context.Context, input models.CreateCheckInInput) (*models.CheckIn, error) {
	if s.userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	checkIn, err := s.store.InsertCheckIn(ctx, s.userID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}
	checkIn.Kudos = []models.Kudos{}
	checkIn.KudosCount = 0

	s.mu.Lock()
	s.feed = append([]*models.CheckIn{checkIn}, s.feed...)
	if len(s.feed) > s.feedWindow {
		s.feed = s.feed[:s.feedWindow]
	}
	s.mu.Unlock()

	if err := s.FetchGoals(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("Goals refresh after check-in failed")
	}
	return checkIn, nil
}

// ToggleKudos flips the current user's reaction on a check-in: deletes the
// existing kudos and decrements the cached count (floored at zero), or
// inserts one and increments. Toggles for the same (check-in, user) pair are
// serialized. The cached record is replaced with an updated copy, never
// mutated in place, so feed snapshots already handed to readers stay stable.
// Returns whether a kudos exists after the call.
func (s *Session) ToggleKudos(ctx context.Context, checkInID string) (bool, error) {
	if s.userID == "" {
		return false, models.ErrNoCurrentUser
	}
	lock := s.toggleLock(checkInID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.FindKudos(ctx, checkInID, s.userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("failed to look up kudos: %w", err)
	}

	if existing != nil {
		if err := s.store.DeleteKudos(ctx, existing.ID); err != nil {
			return true, fmt.Errorf("failed to remove kudos: %w", err)
		}
		s.applyKudos(checkInID, func(ci *models.CheckIn) {
			kept := make([]models.Kudos, 0, len(ci.Kudos))
			for _, k := range ci.Kudos {
				if k.UserID != s.userID {
					kept = append(kept, k)
				}
			}
			ci.Kudos = kept
			if ci.KudosCount > 0 {
				ci.KudosCount--
			}
		})
		return false, nil
	}

	kudos, err := s.store.InsertKudos(ctx, checkInID, s.userID)
	if err != nil {
		return false, fmt.Errorf("failed to add kudos: %w", err)
	}
	s.applyKudos(checkInID, func(ci *models.CheckIn) {
		ci.Kudos = append(append(make([]models.Kudos, 0, len(ci.Kudos)+1), ci.Kudos...), *kudos)
		ci.KudosCount++
	})
	return true, nil
}

// applyKudos swaps the cached check-in for a copy with an updated reaction
// aggregate. Readers holding a snapshot from Feed keep the old record; the
// copy's kudos slice never shares a backing array with it.
func (s *Session) applyKudos(checkInID string, update func(*models.CheckIn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ci := range s.feed {
		if ci.ID == checkInID {
			updated := *ci
			update(&updated)
			s.feed[i] = &updated
			return
		}
	}
}

// FetchCrews replaces the cached crews and memberships.
func (s *Session) FetchCrews(ctx context.Context) error {
	crews, members, err := s.store.ListCrews(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("failed to fetch crews: %w", err)
	}
	s.mu.Lock()
	s.crews = crews
	s.members = members
	s.mu.Unlock()
	return nil
}

// CreateCrew persists a crew with the current user as admin and prepends it.
func (s *Session) CreateCrew(ctx context.Context, name string) (*models.Crew, error) {
	if s.userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	crew, err := s.store.InsertCrew(ctx, name, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create crew: %w", err)
	}
	s.mu.Lock()
	s.crews = append([]*models.Crew{crew}, s.crews...)
	s.mu.Unlock()
	return crew, nil
}

// JoinCrew adds the current user to the crew with the given invite code and
// refreshes the cached crews.
func (s *Session) JoinCrew(ctx context.Context, inviteCode string) (*models.Crew, error) {
	if s.userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	crew, err := s.store.JoinCrew(ctx, inviteCode, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to join crew: %w", err)
	}
	if err := s.FetchCrews(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("Crew refresh after join failed")
	}
	return crew, nil
}

// LeaveCrew removes the current user's membership and drops the crew from the
// cache.
func (s *Session) LeaveCrew(ctx context.Context, crewID string) error {
	if s.userID == "" {
		return models.ErrNoCurrentUser
	}
	if err := s.store.LeaveCrew(ctx, crewID, s.userID); err != nil {
		return fmt.Errorf("failed to leave crew: %w", err)
	}
	s.mu.Lock()
	for i, c := range s.crews {
		if c.ID == crewID {
			s.crews = append(s.crews[:i:i], s.crews[i+1:]...)
			break
		}
	}
	kept := s.members[:0:0]
	for _, m := range s.members {
		if !(m.CrewID == crewID && m.UserID == s.userID) {
			kept = append(kept, m)
		}
	}
	s.members = kept
	s.mu.Unlock()
	return nil
}

// toggleLock returns the serialization lock for a (check-in, user) pair.
func (s *Session) toggleLock(checkInID string) *sync.Mutex {
	s.togglesMu.Lock()
	defer s.togglesMu.Unlock()
	key := checkInID + "/" + s.userID
	lock, ok := s.toggles[key]
	if !ok {
		lock = &sync.Mutex{}
		s.toggles[key] = lock
	}
	return lock
}
