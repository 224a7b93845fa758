package repository

import (
	"context"

	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates the per-entity repositories into the record-store
// collaborator the session cache consumes.
type Store struct {
	Goals    *GoalRepository
	CheckIns *CheckInRepository
	Kudos    *KudosRepository
	Profiles *ProfileRepository
	Crews    *CrewRepository
}

var _ session.RecordStore = (*Store)(nil)

// NewStore creates a record store over the connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		Goals:    NewGoalRepository(db),
		CheckIns: NewCheckInRepository(db),
		Kudos:    NewKudosRepository(db),
		Profiles: NewProfileRepository(db),
		Crews:    NewCrewRepository(db),
	}
}

// ListGoals implements session.RecordStore.
func (s *Store) ListGoals(ctx context.Context, ownerID string) ([]*models.Goal, error) {
	return s.Goals.ListByUser(ctx, ownerID)
}

// InsertGoal implements session.RecordStore.
func (s *Store) InsertGoal(ctx context.Context, ownerID string, input models.CreateGoalInput) (*models.Goal, error) {
	return s.Goals.Insert(ctx, ownerID, input)
}

// UpdateGoal implements session.RecordStore.
func (s *Store) UpdateGoal(ctx context.Context, id string, upd models.GoalUpdate) (*models.Goal, error) {
	return s.Goals.Update(ctx, id, upd)
}

// DeleteGoal implements session.RecordStore.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	return s.Goals.Delete(ctx, id)
}

// ListFeed implements session.RecordStore.
func (s *Store) ListFeed(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	return s.CheckIns.ListFeed(ctx, limit)
}

// ListCheckIns implements session.RecordStore.
func (s *Store) ListCheckIns(ctx context.Context, goalID string, limit int) ([]*models.CheckIn, error) {
	return s.CheckIns.ListByGoal(ctx, goalID, limit)
}

// InsertCheckIn implements session.RecordStore.
func (s *Store) InsertCheckIn(ctx context.Context, userID string, input models.CreateCheckInInput) (*models.CheckIn, error) {
	return s.CheckIns.Insert(ctx, userID, input)
}

// FindKudos implements session.RecordStore.
func (s *Store) FindKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	return s.Kudos.Find(ctx, checkInID, userID)
}

// InsertKudos implements session.RecordStore.
func (s *Store) InsertKudos(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	return s.Kudos.Insert(ctx, checkInID, userID)
}

// DeleteKudos implements session.RecordStore.
func (s *Store) DeleteKudos(ctx context.Context, id string) error {
	return s.Kudos.Delete(ctx, id)
}

// ListCrews implements session.RecordStore.
func (s *Store) ListCrews(ctx context.Context, userID string) ([]*models.Crew, []*models.CrewMember, error) {
	return s.Crews.ListByUser(ctx, userID)
}

// InsertCrew implements session.RecordStore.
func (s *Store) InsertCrew(ctx context.Context, name, userID string) (*models.Crew, error) {
	return s.Crews.Insert(ctx, name, userID)
}

// JoinCrew implements session.RecordStore.
func (s *Store) JoinCrew(ctx context.Context, inviteCode, userID string) (*models.Crew, error) {
	return s.Crews.Join(ctx, inviteCode, userID)
}

// LeaveCrew implements session.RecordStore.
func (s *Store) LeaveCrew(ctx context.Context, crewID, userID string) error {
	return s.Crews.Leave(ctx, crewID, userID)
}
