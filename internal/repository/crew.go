package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"pact-proof-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	inviteCodeLength = 6
	inviteCodeChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// CrewRepository handles database operations for crews and their members.
type CrewRepository struct {
	db *pgxpool.Pool
}

// NewCrewRepository creates a new crew repository.
func NewCrewRepository(db *pgxpool.Pool) *CrewRepository {
	return &CrewRepository{db: db}
}

// Insert creates a crew with a unique invite code and the creator as admin.
func (r *CrewRepository) Insert(ctx context.Context, name, creatorID string) (*models.Crew, error) {
	code, err := r.generateUniqueInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	crew := &models.Crew{
		ID:         uuid.New().String(),
		Name:       name,
		InviteCode: code,
		CreatedBy:  creatorID,
		CreatedAt:  time.Now().UTC(),
	}
	crew.UpdatedAt = crew.CreatedAt

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO crews (id, name, invite_code, group_streak, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
	`, crew.ID, crew.Name, crew.InviteCode, crew.CreatedBy, crew.CreatedAt, crew.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create crew: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO crew_members (crew_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, crew.ID, creatorID, string(models.CrewRoleAdmin), crew.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add crew creator: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit crew: %w", err)
	}
	return crew, nil
}

// Join adds a user to the crew matching the invite code (case-insensitive).
func (r *CrewRepository) Join(ctx context.Context, inviteCode, userID string) (*models.Crew, error) {
	crew, err := r.getByInviteCode(ctx, strings.ToLower(inviteCode))
	if err != nil {
		return nil, err
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM crew_members WHERE crew_id = $1 AND user_id = $2)`,
		crew.ID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check crew membership: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user is already a member of this crew")
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO crew_members (crew_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, crew.ID, userID, string(models.CrewRoleMember), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to join crew: %w", err)
	}
	return crew, nil
}

// Leave removes a user's membership from a crew.
func (r *CrewRepository) Leave(ctx context.Context, crewID, userID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM crew_members WHERE crew_id = $1 AND user_id = $2`,
		crewID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to leave crew: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByUser retrieves the crews a user belongs to, together with every
// member of those crews (profiles attached).
func (r *CrewRepository) ListByUser(ctx context.Context, userID string) ([]*models.Crew, []*models.CrewMember, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.invite_code, c.group_streak, c.created_by, c.created_at, c.updated_at
		FROM crews c
		JOIN crew_members m ON m.crew_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list crews: %w", err)
	}
	defer rows.Close()

	var crews []*models.Crew
	var crewIDs []string
	for rows.Next() {
		var c models.Crew
		err := rows.Scan(&c.ID, &c.Name, &c.InviteCode, &c.GroupStreak, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan crew: %w", err)
		}
		crews = append(crews, &c)
		crewIDs = append(crewIDs, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating crews: %w", err)
	}
	if len(crews) == 0 {
		return nil, nil, nil
	}

	members, err := r.listMembers(ctx, crewIDs)
	if err != nil {
		return nil, nil, err
	}
	return crews, members, nil
}

// MemberIDs returns the user ids of everyone sharing a crew with the given
// user, excluding the user themselves.
func (r *CrewRepository) MemberIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT m.user_id
		FROM crew_members m
		WHERE m.crew_id IN (SELECT crew_id FROM crew_members WHERE user_id = $1)
		  AND m.user_id <> $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list crew mates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan crew mate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crew mates: %w", err)
	}
	return ids, nil
}

func (r *CrewRepository) getByInviteCode(ctx context.Context, code string) (*models.Crew, error) {
	var c models.Crew
	err := r.db.QueryRow(ctx, `
		SELECT id, name, invite_code, group_streak, created_by, created_at, updated_at
		FROM crews WHERE invite_code = $1
	`, code).Scan(&c.ID, &c.Name, &c.InviteCode, &c.GroupStreak, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get crew by invite code: %w", err)
	}
	return &c, nil
}

func (r *CrewRepository) listMembers(ctx context.Context, crewIDs []string) ([]*models.CrewMember, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.crew_id, m.user_id, m.role, m.joined_at,
			p.id, p.name, p.avatar_url, p.bio, p.location, p.streak, p.last_check_in,
			p.created_at, p.updated_at
		FROM crew_members m
		JOIN profiles p ON p.id = m.user_id
		WHERE m.crew_id = ANY($1)
		ORDER BY m.joined_at
	`, crewIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list crew members: %w", err)
	}
	defer rows.Close()

	var members []*models.CrewMember
	for rows.Next() {
		var m models.CrewMember
		var p models.Profile
		var role string
		err := rows.Scan(
			&m.CrewID, &m.UserID, &role, &m.JoinedAt,
			&p.ID, &p.Name, &p.AvatarURL, &p.Bio, &p.Location, &p.Streak,
			&p.LastCheckIn, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crew member: %w", err)
		}
		m.Role = models.CrewRole(role)
		m.Profile = &p
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crew members: %w", err)
	}
	return members, nil
}

// generateUniqueInviteCode generates a random invite code not yet in use.
func (r *CrewRepository) generateUniqueInviteCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateInviteCode()
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM crews WHERE invite_code = $1)`, code,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique invite code after %d attempts", maxAttempts)
}

// generateInviteCode generates a random 6-character lowercase code.
func generateInviteCode() string {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code)
}
