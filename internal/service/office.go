package service

import (
	"context"
	"errors"
	"fmt"

	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOfficeNameTaken = repo.ErrOfficeNameTaken

	// ErrOfficeInUse indicates the office still routes non-terminal documents
	ErrOfficeInUse = errors.New("office has documents in flight and cannot be archived")
)

// OfficeAdminStore is the slice of OfficeRepository the office service needs.
type OfficeAdminStore interface {
	Create(ctx context.Context, o *domain.Office) (*domain.Office, error)
	Get(ctx context.Context, officeID string) (*domain.Office, error)
	List(ctx context.Context, includeArchived bool) ([]domain.Office, error)
	Archive(ctx context.Context, officeID string) error
	CountInFlightDocuments(ctx context.Context, officeID string) (int64, error)
}

// OfficeService manages the office directory. Creation and archival are
// admin-gated; listing is open to any authenticated identity.
type OfficeService struct {
	offices OfficeAdminStore
	audit   AuditSink
	log     *logger.Logger
}

// NewOfficeService creates a new OfficeService.
func NewOfficeService(offices OfficeAdminStore, audit AuditSink, log *logger.Logger) *OfficeService {
	return &OfficeService{offices: offices, audit: audit, log: log}
}

func (s *OfficeService) auditAction(ctx context.Context, caller domain.ActorClaims, action string, status domain.AuditStatus, details map[string]interface{}) {
	err := s.audit.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		ActorUID:   caller.UID,
		ActorEmail: caller.Email,
		Action:     action,
		Status:     status,
		Details:    details,
	})
	if err != nil {
		s.log.Error(ctx, "failed to append audit entry",
			logger.Module("office"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}

// CreateOffice adds a new active office. Admin only.
func (s *OfficeService) CreateOffice(ctx context.Context, caller domain.ActorClaims, req *domain.CreateOfficeRequest) (*domain.Office, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = "public"
	}

	office, err := s.offices.Create(ctx, &domain.Office{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Visibility: visibility,
		Status:     domain.OfficeStatusActive,
	})
	if err != nil {
		return nil, err
	}

	s.auditAction(ctx, caller, "office.create", domain.AuditStatusSuccess, map[string]interface{}{
		"officeId": office.ID,
		"name":     office.Name,
	})

	return office, nil
}

// ListOffices retrieves the office directory.
func (s *OfficeService) ListOffices(ctx context.Context, includeArchived bool) ([]domain.Office, error) {
	offices, err := s.offices.List(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list offices: %w", err)
	}
	return offices, nil
}

// ArchiveOffice retires an office from the directory. Admin only, and refused
// while any document still routes through it.
func (s *OfficeService) ArchiveOffice(ctx context.Context, caller domain.ActorClaims, officeID string) (*domain.Office, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	office, err := s.offices.Get(ctx, officeID)
	if err != nil {
		return nil, err
	}

	inFlight, err := s.offices.CountInFlightDocuments(ctx, officeID)
	if err != nil {
		return nil, fmt.Errorf("count in-flight documents: %w", err)
	}
	if inFlight > 0 {
		s.auditAction(ctx, caller, "office.archive", domain.AuditStatusFailure, map[string]interface{}{
			"officeId": officeID,
			"inFlight": inFlight,
		})
		return nil, fmt.Errorf("%w: %d in flight", ErrOfficeInUse, inFlight)
	}

	if err := s.offices.Archive(ctx, officeID); err != nil {
		return nil, err
	}

	s.auditAction(ctx, caller, "office.archive", domain.AuditStatusSuccess, map[string]interface{}{
		"officeId": officeID,
		"name":     office.Name,
	})

	office.Status = domain.OfficeStatusArchived
	return office, nil
}
