package models

import (
	"errors"
	"time"
)

// Sentinel errors shared across layers.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoCurrentUser is returned when a mutating operation runs without an
	// authenticated user.
	ErrNoCurrentUser = errors.New("no current user")
)

// Category classifies a goal.
type Category string

// Goal categories.
const (
	CategoryFitness  Category = "fitness"
	CategoryCreative Category = "creative"
	CategoryProject  Category = "project"
	CategoryLife     Category = "life"
	CategoryWork     Category = "work"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryFitness, CategoryCreative, CategoryProject, CategoryLife, CategoryWork:
		return true
	}
	return false
}

// Cadence is how often a goal expects a check-in.
type Cadence string

// Goal cadences.
const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceOnce    Cadence = "once"
)

// Valid reports whether the cadence is one of the known values.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceOnce:
		return true
	}
	return false
}

// CrewRole is a member's role inside a crew.
type CrewRole string

// Crew roles.
const (
	CrewRoleAdmin  CrewRole = "admin"
	CrewRoleMember CrewRole = "member"
)

// Profile represents a user profile.
type Profile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	Bio         *string    `json:"bio,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Streak      int        `json:"streak"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
	PushToken   *string    `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Goal represents a user-declared commitment being tracked.
// Streak is derived from check-in history by the check-in pipeline and is
// never set directly.
type Goal struct {
	ID               string    `json:"id"`
	CrewID           *string   `json:"crew_id,omitempty"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description,omitempty"`
	Category         Category  `json:"category"`
	Cadence          Cadence   `json:"cadence"`
	DefinitionOfDone *string   `json:"definition_of_done,omitempty"`
	Stakes           *string   `json:"stakes,omitempty"`
	Streak           int       `json:"streak"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Owner *Profile `json:"owner,omitempty"`
}

// CheckIn represents one submitted proof-of-completion event for a goal.
// It is immutable once created except for its kudos aggregate, and always
// carries exactly the verification outcome produced at creation time.
type CheckIn struct {
	ID              string    `json:"id"`
	GoalID          string    `json:"goal_id"`
	UserID          string    `json:"user_id"`
	PhotoURL        *string   `json:"photo_url,omitempty"`
	SelfieURL       *string   `json:"selfie_url,omitempty"`
	Note            *string   `json:"note,omitempty"`
	Verdict         *string   `json:"verdict,omitempty"`
	ConfidenceScore *int      `json:"confidence_score,omitempty"`
	IsFake          bool      `json:"is_fake"`
	LocationName    *string   `json:"location_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	Goal       *Goal    `json:"goal,omitempty"`
	User       *Profile `json:"user,omitempty"`
	Kudos      []Kudos  `json:"kudos"`
	KudosCount int      `json:"kudos_count"`
}

// Kudos represents one user's reaction to a check-in. At most one exists per
// (check-in, user) pair; the toggle pipeline enforces this.
type Kudos struct {
	ID        string    `json:"id"`
	CheckInID string    `json:"check_in_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	User *Profile `json:"user,omitempty"`
}

// Crew represents a group of users sharing goals.
type Crew struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	InviteCode  string    `json:"invite_code"`
	GroupStreak int       `json:"group_streak"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CrewMember represents a user's membership in a crew.
type CrewMember struct {
	CrewID   string    `json:"crew_id"`
	UserID   string    `json:"user_id"`
	Role     CrewRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	Profile *Profile `json:"profile,omitempty"`
}

// CreateGoalInput is the payload for creating a goal.
type CreateGoalInput struct {
	Title            string   `json:"title"`
	Description      *string  `json:"description,omitempty"`
	Category         Category `json:"category"`
	Cadence          Cadence  `json:"cadence"`
	DefinitionOfDone *string  `json:"definition_of_done,omitempty"`
	Stakes           *string  `json:"stakes,omitempty"`
	CrewID           *string  `json:"crew_id,omitempty"`
}

// GoalUpdate holds the mutable goal fields; nil fields are left unchanged.
// Streak is deliberately absent.
type GoalUpdate struct {
	Title            *string   `json:"title,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Category         *Category `json:"category,omitempty"`
	Cadence          *Cadence  `json:"cadence,omitempty"`
	DefinitionOfDone *string   `json:"definition_of_done,omitempty"`
	Stakes           *string   `json:"stakes,omitempty"`
}

// CreateCheckInInput is the payload the verification pipeline hands to the
// record store. The judgment fields are always populated: scorer failures are
// absorbed upstream into a fallback judgment.
type CreateCheckInInput struct {
	GoalID          string  `json:"goal_id"`
	PhotoURL        *string `json:"photo_url,omitempty"`
	SelfieURL       *string `json:"selfie_url,omitempty"`
	Note            *string `json:"note,omitempty"`
	LocationName    *string `json:"location_name,omitempty"`
	Verdict         string  `json:"verdict"`
	ConfidenceScore int     `json:"confidence_score"`
	IsFake          bool    `json:"is_fake"`
}
