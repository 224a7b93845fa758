package services

import (
	"context"
	"fmt"

	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// PushNotifier sends best-effort APNs notifications for crew activity and
// received kudos. A notifier without a configured certificate is a no-op;
// delivery errors are logged, never propagated.
type PushNotifier struct {
	client      *apns2.Client
	topic       string
	profileRepo *repository.ProfileRepository
}

// NewPushNotifier creates a push notifier from a p12 certificate. An empty
// certificate path disables push entirely.
func NewPushNotifier(certPath, certPassword, topic string, production bool, profileRepo *repository.ProfileRepository) (*PushNotifier, error) {
	n := &PushNotifier{topic: topic, profileRepo: profileRepo}
	if certPath == "" {
		return n, nil
	}

	cert, err := certificate.FromP12File(certPath, certPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load push certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	n.client = client
	return n, nil
}

// NotifyKudos tells a check-in's author someone reacted to their proof.
func (n *PushNotifier) NotifyKudos(ctx context.Context, checkIn *models.CheckIn, reactorName string) {
	if n.client == nil || checkIn.UserID == "" {
		return
	}
	title := "Kudos received"
	body := fmt.Sprintf("%s gave kudos on your proof", reactorName)
	if checkIn.Goal != nil {
		body = fmt.Sprintf("%s gave kudos on your %q proof", reactorName, checkIn.Goal.Title)
	}
	n.send(ctx, checkIn.UserID, title, body)
}

// NotifyCrewCheckIn tells crew mates a member just proved a goal.
func (n *PushNotifier) NotifyCrewCheckIn(ctx context.Context, memberIDs []string, checkIn *models.CheckIn) {
	if n.client == nil {
		return
	}
	title := "Crew check-in"
	body := "A crew mate checked in"
	if checkIn.User != nil && checkIn.Goal != nil {
		body = fmt.Sprintf("%s checked in on %q", checkIn.User.Name, checkIn.Goal.Title)
	}
	for _, id := range memberIDs {
		n.send(ctx, id, title, body)
	}
}

// send pushes one notification to a user's registered device, if any.
func (n *PushNotifier) send(ctx context.Context, userID, title, body string) {
	profile, err := n.profileRepo.GetByID(ctx, userID)
	if err != nil || profile.PushToken == nil {
		return
	}

	notification := &apns2.Notification{
		DeviceToken: *profile.PushToken,
		Topic:       n.topic,
		Payload:     payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default"),
	}

	resp, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send push notification")
		return
	}
	if !resp.Sent() {
		log.Warn().Str("user_id", userID).Str("reason", resp.Reason).Msg("Push notification rejected")
	}
}
