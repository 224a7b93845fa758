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

const goalColumns = `id, crew_id, owner_id, title, description, category, cadence,
	definition_of_done, stakes, streak, created_at, updated_at`

// GoalRepository handles database operations for goals.
type GoalRepository struct {
	db *pgxpool.Pool
}

// NewGoalRepository creates a new goal repository.
func NewGoalRepository(db *pgxpool.Pool) *GoalRepository {
	return &GoalRepository{db: db}
}

// Insert creates a goal owned by the given user and returns the authoritative
// record; id and timestamps are assigned here, not by the caller.
func (r *GoalRepository) Insert(ctx context.Context, ownerID string, input models.CreateGoalInput) (*models.Goal, error) {
	goal := &models.Goal{
		ID:               uuid.New().String(),
		CrewID:           input.CrewID,
		OwnerID:          ownerID,
		Title:            input.Title,
		Description:      input.Description,
		Category:         input.Category,
		Cadence:          input.Cadence,
		DefinitionOfDone: input.DefinitionOfDone,
		Stakes:           input.Stakes,
		CreatedAt:        time.Now().UTC(),
	}
	goal.UpdatedAt = goal.CreatedAt

	query := `
		INSERT INTO goals (id, crew_id, owner_id, title, description, category, cadence,
			definition_of_done, stakes, streak, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		goal.ID, goal.CrewID, goal.OwnerID, goal.Title, goal.Description,
		string(goal.Category), string(goal.Cadence), goal.DefinitionOfDone,
		goal.Stakes, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	return goal, nil
}

// GetByID retrieves a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`
	goal, err := scanGoal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// ListByUser retrieves the goals visible to a user (owned, or shared through
// a crew membership), newest first.
func (r *GoalRepository) ListByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE owner_id = $1
		   OR crew_id IN (SELECT crew_id FROM crew_members WHERE user_id = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return goals, nil
}

// Update applies the non-nil fields of upd and returns the updated record.
// The streak column is never touched here; only the check-in pipeline
// recomputes it.
func (r *GoalRepository) Update(ctx context.Context, id string, upd models.GoalUpdate) (*models.Goal, error) {
	var category, cadence *string
	if upd.Category != nil {
		c := string(*upd.Category)
		category = &c
	}
	if upd.Cadence != nil {
		c := string(*upd.Cadence)
		cadence = &c
	}

	query := `
		UPDATE goals SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			category = COALESCE($4, category),
			cadence = COALESCE($5, cadence),
			definition_of_done = COALESCE($6, definition_of_done),
			stakes = COALESCE($7, stakes),
			updated_at = $8
		WHERE id = $1
		RETURNING ` + goalColumns + `
	`
	goal, err := scanGoal(r.db.QueryRow(ctx, query,
		id, upd.Title, upd.Description, category, cadence,
		upd.DefinitionOfDone, upd.Stakes, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return goal, nil
}

// Delete removes a goal. Its check-ins are left in place and drop out of feed
// queries through their inner join on goals.
func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// scanGoal scans one goal row.
func scanGoal(row pgx.Row) (*models.Goal, error) {
	var goal models.Goal
	var category, cadence string
	err := row.Scan(
		&goal.ID, &goal.CrewID, &goal.OwnerID, &goal.Title, &goal.Description,
		&category, &cadence, &goal.DefinitionOfDone, &goal.Stakes,
		&goal.Streak, &goal.CreatedAt, &goal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Category = models.Category(category)
	goal.Cadence = models.Cadence(cadence)
	return &goal, nil
}
