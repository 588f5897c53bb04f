package service

import (
	"context"
	"errors"
	"fmt"

	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"
)

// NotificationService projects the notification feed for an identity. It only
// reads: the document collection is the single source of truth and nothing is
// ever written back.
type NotificationService struct {
	documents DocumentStore
	profiles  ProfileStore
	log       *logger.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(documents DocumentStore, profiles ProfileStore, log *logger.Logger) *NotificationService {
	return &NotificationService{documents: documents, profiles: profiles, log: log}
}

// ListNotifications derives the feed for the caller: documents awaiting the
// caller's office, plus signatures on documents the caller owns.
func (s *NotificationService) ListNotifications(ctx context.Context, caller domain.ActorClaims) ([]domain.Notification, error) {
	profile, err := s.profiles.Get(ctx, caller.UID)
	if err != nil {
		if errors.Is(err, repo.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var received []domain.Document
	officeID := ""
	if profile.OfficeID != nil {
		officeID = *profile.OfficeID

		status := domain.DocumentStatusInTransit
		received, err = s.documents.List(ctx, domain.ListDocumentsParams{
			CurrentOfficeID: profile.OfficeID,
			Status:          &status,
		})
		if err != nil {
			return nil, fmt.Errorf("list received documents: %w", err)
		}
	}

	owned, err := s.documents.List(ctx, domain.ListDocumentsParams{OwnerID: &caller.UID})
	if err != nil {
		return nil, fmt.Errorf("list owned documents: %w", err)
	}

	return domain.ProjectNotifications(received, owned, officeID), nil
}
