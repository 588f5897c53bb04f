package service

import (
	"context"
	"fmt"

	"docroute-api/internal/domain"
)

// AuditStore is the full audit repository contract: best-effort append plus
// the admin read path.
type AuditStore interface {
	AuditSink
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	audit AuditStore
}

// NewAuditService creates a new AuditService.
func NewAuditService(audit AuditStore) *AuditService {
	return &AuditService{audit: audit}
}

// ListAuditLog retrieves the most recent audit entries. Admin only.
func (s *AuditService) ListAuditLog(ctx context.Context, caller domain.ActorClaims, limit int) ([]domain.AuditEntry, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	entries, err := s.audit.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
