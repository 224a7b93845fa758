package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/streak"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// checkInSelect returns check-ins denormalized with their goal and author
// projections. The inner join on goals drops check-ins orphaned by a goal
// deletion.
const checkInSelect = `
	SELECT c.id, c.goal_id, c.user_id, c.photo_url, c.selfie_url, c.note,
		c.verdict, c.confidence_score, c.is_fake, c.location_name, c.created_at,
		g.id, g.crew_id, g.owner_id, g.title, g.description, g.category, g.cadence,
		g.definition_of_done, g.stakes, g.streak, g.created_at, g.updated_at,
		p.id, p.name, p.avatar_url, p.bio, p.location, p.streak, p.last_check_in,
		p.created_at, p.updated_at
	FROM check_ins c
	JOIN goals g ON g.id = c.goal_id
	JOIN profiles p ON p.id = c.user_id
`

// CheckInRepository handles database operations for check-ins.
type CheckInRepository struct {
	db *pgxpool.Pool
}

// NewCheckInRepository creates a new check-in repository.
func NewCheckInRepository(db *pgxpool.Pool) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Insert creates a check-in and, in the same transaction, recomputes the
// owning goal's streak from the updated history and mirrors the owner's best
// streak onto their profile. Returns the denormalized record.
func (r *CheckInRepository) Insert(ctx context.Context, userID string, input models.CreateCheckInInput) (*models.CheckIn, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO check_ins (id, goal_id, user_id, photo_url, selfie_url, note,
			verdict, confidence_score, is_fake, location_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, query,
		id, input.GoalID, userID, input.PhotoURL, input.SelfieURL, input.Note,
		input.Verdict, input.ConfidenceScore, input.IsFake, input.LocationName, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	if err := r.refreshStreak(ctx, tx, input.GoalID, userID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit check-in: %w", err)
	}

	return r.GetByID(ctx, id)
}

// refreshStreak recomputes the goal streak from check-in history and updates
// the owner's denormalized profile streak.
func (r *CheckInRepository) refreshStreak(ctx context.Context, tx pgx.Tx, goalID, userID string, now time.Time) error {
	var cadence string
	if err := tx.QueryRow(ctx, `SELECT cadence FROM goals WHERE id = $1`, goalID).Scan(&cadence); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to get goal cadence: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT created_at FROM check_ins WHERE goal_id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("failed to list check-in history: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return fmt.Errorf("failed to scan check-in time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating check-in history: %w", err)
	}

	count := streak.Compute(models.Cadence(cadence), times, now)

	if _, err := tx.Exec(ctx,
		`UPDATE goals SET streak = $2, updated_at = $3 WHERE id = $1`,
		goalID, count, now,
	); err != nil {
		return fmt.Errorf("failed to update goal streak: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE profiles
		SET streak = (SELECT COALESCE(MAX(streak), 0) FROM goals WHERE owner_id = $1),
			last_check_in = $2, updated_at = $2
		WHERE id = $1
	`, userID, now); err != nil {
		return fmt.Errorf("failed to update profile streak: %w", err)
	}
	return nil
}

// GetByID retrieves one denormalized check-in with its kudos.
func (r *CheckInRepository) GetByID(ctx context.Context, id string) (*models.CheckIn, error) {
	checkIn, err := scanCheckIn(r.db.QueryRow(ctx, checkInSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	if err := r.attachKudos(ctx, []*models.CheckIn{checkIn}); err != nil {
		return nil, err
	}
	return checkIn, nil
}

// ListFeed retrieves the most recent check-ins across all goals with their
// kudos, newest first, bounded by limit.
func (r *CheckInRepository) ListFeed(ctx context.Context, limit int) ([]*models.CheckIn, error) {
	return r.list(ctx, checkInSelect+` ORDER BY c.created_at DESC LIMIT $1`, limit)
}

// ListByGoal retrieves check-ins for one goal, newest first.
func (r *CheckInRepository) ListByGoal(ctx context.Context, goalID string, limit int) ([]*models.CheckIn, error) {
	return r.list(ctx, checkInSelect+` WHERE c.goal_id = $1 ORDER BY c.created_at DESC LIMIT $2`, goalID, limit)
}

func (r *CheckInRepository) list(ctx context.Context, query string, args ...any) ([]*models.CheckIn, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []*models.CheckIn
	for rows.Next() {
		checkIn, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, checkIn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-ins: %w", err)
	}

	if err := r.attachKudos(ctx, checkIns); err != nil {
		return nil, err
	}
	return checkIns, nil
}

// attachKudos loads the kudos (with reactor profiles) for the given check-ins
// and fills the reaction aggregates. The cached count always equals the
// length of the kudos list.
func (r *CheckInRepository) attachKudos(ctx context.Context, checkIns []*models.CheckIn) error {
	if len(checkIns) == 0 {
		return nil
	}
	ids := make([]string, len(checkIns))
	byID := make(map[string]*models.CheckIn, len(checkIns))
	for i, ci := range checkIns {
		ids[i] = ci.ID
		byID[ci.ID] = ci
		ci.Kudos = []models.Kudos{}
	}

	query := `
		SELECT k.id, k.check_in_id, k.user_id, k.created_at,
			p.id, p.name, p.avatar_url, p.bio, p.location, p.streak, p.last_check_in,
			p.created_at, p.updated_at
		FROM kudos k
		JOIN profiles p ON p.id = k.user_id
		WHERE k.check_in_id = ANY($1)
		ORDER BY k.created_at
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to list kudos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k models.Kudos
		var p models.Profile
		err := rows.Scan(
			&k.ID, &k.CheckInID, &k.UserID, &k.CreatedAt,
			&p.ID, &p.Name, &p.AvatarURL, &p.Bio, &p.Location, &p.Streak,
			&p.LastCheckIn, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan kudos: %w", err)
		}
		k.User = &p
		if ci, ok := byID[k.CheckInID]; ok {
			ci.Kudos = append(ci.Kudos, k)
			ci.KudosCount = len(ci.Kudos)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating kudos: %w", err)
	}
	return nil
}

// scanCheckIn scans one denormalized check-in row.
func scanCheckIn(row pgx.Row) (*models.CheckIn, error) {
	var ci models.CheckIn
	var goal models.Goal
	var user models.Profile
	var category, cadence string
	err := row.Scan(
		&ci.ID, &ci.GoalID, &ci.UserID, &ci.PhotoURL, &ci.SelfieURL, &ci.Note,
		&ci.Verdict, &ci.ConfidenceScore, &ci.IsFake, &ci.LocationName, &ci.CreatedAt,
		&goal.ID, &goal.CrewID, &goal.OwnerID, &goal.Title, &goal.Description,
		&category, &cadence, &goal.DefinitionOfDone, &goal.Stakes, &goal.Streak,
		&goal.CreatedAt, &goal.UpdatedAt,
		&user.ID, &user.Name, &user.AvatarURL, &user.Bio, &user.Location,
		&user.Streak, &user.LastCheckIn, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Category = models.Category(category)
	goal.Cadence = models.Cadence(cadence)
	ci.Goal = &goal
	ci.User = &user
	return &ci, nil
}
