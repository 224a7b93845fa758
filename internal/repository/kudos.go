package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pact-proof-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KudosRepository handles database operations for kudos.
type KudosRepository struct {
	db *pgxpool.Pool
}

// NewKudosRepository creates a new kudos repository.
func NewKudosRepository(db *pgxpool.Pool) *KudosRepository {
	return &KudosRepository{db: db}
}

// Find retrieves the kudos left by a user on a check-in, or ErrNotFound.
// A unique index on (check_in_id, user_id) guarantees at most one row.
func (r *KudosRepository) Find(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	query := `
		SELECT id, check_in_id, user_id, created_at
		FROM kudos
		WHERE check_in_id = $1 AND user_id = $2
	`
	var k models.Kudos
	err := r.db.QueryRow(ctx, query, checkInID, userID).Scan(
		&k.ID, &k.CheckInID, &k.UserID, &k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find kudos: %w", err)
	}
	return &k, nil
}

// Insert creates a kudos and returns it with the reactor's profile attached.
func (r *KudosRepository) Insert(ctx context.Context, checkInID, userID string) (*models.Kudos, error) {
	k := &models.Kudos{
		ID:        uuid.New().String(),
		CheckInID: checkInID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO kudos (id, check_in_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Exec(ctx, query, k.ID, k.CheckInID, k.UserID, k.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create kudos: %w", err)
	}

	var p models.Profile
	err := r.db.QueryRow(ctx, `
		SELECT id, name, avatar_url, bio, location, streak, last_check_in, created_at, updated_at
		FROM profiles WHERE id = $1
	`, userID).Scan(
		&p.ID, &p.Name, &p.AvatarURL, &p.Bio, &p.Location, &p.Streak,
		&p.LastCheckIn, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == nil {
		k.User = &p
	}
	return k, nil
}

// Delete removes a kudos by ID.
func (r *KudosRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM kudos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete kudos: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
