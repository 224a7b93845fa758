package services

import (
	"context"
	"fmt"
	"time"

	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// ProfileService handles profile and identity logic.
type ProfileService struct {
	profileRepo *repository.ProfileRepository
	jwtSecret   string
}

// NewProfileService creates a new profile service.
func NewProfileService(profileRepo *repository.ProfileRepository, jwtSecret string) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		jwtSecret:   jwtSecret,
	}
}

// Register creates a new profile and returns it with a signed token.
func (s *ProfileService) Register(ctx context.Context, name string) (*models.Profile, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("name is required")
	}

	now := time.Now().UTC()
	profile := &models.Profile{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	token, err := s.GenerateJWT(profile.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, "", fmt.Errorf("failed to create profile: %w", err)
	}

	return profile, token, nil
}

// GetProfile retrieves a profile by ID.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

// UpdatePushToken stores a device push token for a profile.
func (s *ProfileService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	return s.profileRepo.UpdatePushToken(ctx, userID, pushToken)
}

// GenerateJWT generates a JWT token for a user.
func (s *ProfileService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID.
func (s *ProfileService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}
