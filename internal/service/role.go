package service

import (
	"context"
	"errors"
	"fmt"

	"docroute-api/internal/claims"
	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized    = errors.New("user not authorized for this action")
	ErrProfileNotFound = repo.ErrProfileNotFound
)

// ProfileStore is the slice of ProfileRepository the identity services need.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	UpdateRole(ctx context.Context, uid string, role domain.Role, isRoot bool) error
	UpdateStatus(ctx context.Context, uid string, status domain.UserStatus) error
	UpdateOffice(ctx context.Context, uid string, officeID *string) error
	List(ctx context.Context, limit int) ([]domain.Profile, error)
}

// AuditSink receives audit entries. Failures are logged, never propagated:
// an unavailable audit store must not fail the guarded operation.
type AuditSink interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}

// RoleService enforces the role-change rule table and keeps the Claims Store
// and the profile record in sync. Claims are written first; if the profile
// write then fails, the next sync converges the pair rather than leaving an
// identity with privileges its profile never granted.
type RoleService struct {
	profiles    ProfileStore
	claimsStore claims.Store
	audit       AuditSink
	rootEmail   string
	log         *logger.Logger
}

// NewRoleService creates a new RoleService. rootEmail is the reserved root
// address from configuration, already lowercased.
func NewRoleService(profiles ProfileStore, claimsStore claims.Store, audit AuditSink, rootEmail string, log *logger.Logger) *RoleService {
	return &RoleService{
		profiles:    profiles,
		claimsStore: claimsStore,
		audit:       audit,
		rootEmail:   rootEmail,
		log:         log,
	}
}

func (s *RoleService) auditAction(ctx context.Context, caller domain.ActorClaims, action string, status domain.AuditStatus, details map[string]interface{}) {
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
			logger.Module("role"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}

// AssignRole changes the target identity's role, writing the Claims Store
// first and the profile record second. Both the denial and the grant are
// audited.
func (s *RoleService) AssignRole(ctx context.Context, caller domain.ActorClaims, req *domain.AssignRoleRequest) (*domain.Profile, error) {
	target, err := s.profiles.Get(ctx, req.TargetUID)
	if err != nil {
		if errors.Is(err, repo.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load target profile: %w", err)
	}

	targetIsRoot := target.IsRoot || domain.IsRootEmail(target.Email, s.rootEmail)

	if err := domain.CheckRoleAssignment(caller, targetIsRoot, req.Role); err != nil {
		s.auditAction(ctx, caller, "role.assign", domain.AuditStatusFailure, map[string]interface{}{
			"targetUid": req.TargetUID,
			"requested": req.Role.String(),
			"reason":    err.Error(),
		})
		return nil, err
	}

	// Claims first. A failure here leaves both sides untouched.
	if err := s.claimsStore.Set(ctx, target.UID, domain.Claims{Role: req.Role, IsRoot: false}); err != nil {
		s.auditAction(ctx, caller, "role.assign", domain.AuditStatusFailure, map[string]interface{}{
			"targetUid": req.TargetUID,
			"requested": req.Role.String(),
			"reason":    "claims store write failed",
		})
		return nil, fmt.Errorf("set claims: %w", err)
	}

	if err := s.profiles.UpdateRole(ctx, target.UID, req.Role, false); err != nil {
		// Claims already updated; the profile row is now stale until the next
		// successful sync. Surface the error so the caller retries.
		s.log.Error(ctx, "profile role write failed after claims update",
			logger.Module("role"),
			logger.Action("role.assign"),
			zap.String("target_uid", target.UID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update profile role: %w", err)
	}

	s.auditAction(ctx, caller, "role.assign", domain.AuditStatusSuccess, map[string]interface{}{
		"targetUid": req.TargetUID,
		"requested": req.Role.String(),
	})

	target.Role = req.Role
	return target, nil
}

// EnsureRootClaims grants the root claims to the caller, provided the caller's
// email is the reserved root address. Idempotent: re-running converges claims
// and profile onto the same pair.
func (s *RoleService) EnsureRootClaims(ctx context.Context, caller domain.ActorClaims) (*domain.Profile, error) {
	if !domain.IsRootEmail(caller.Email, s.rootEmail) {
		s.auditAction(ctx, caller, "role.ensure_root", domain.AuditStatusFailure, map[string]interface{}{
			"reason": "caller is not the root address",
		})
		return nil, ErrUnauthorized
	}

	// Skip the claims write when the pair is already in place; a failed
	// read falls through to the write path.
	existing, err := s.claimsStore.Get(ctx, caller.UID)
	if err != nil || existing.Role != domain.RoleAdmin || !existing.IsRoot {
		if err := s.claimsStore.Set(ctx, caller.UID, domain.Claims{Role: domain.RoleAdmin, IsRoot: true}); err != nil {
			return nil, fmt.Errorf("set root claims: %w", err)
		}
	}

	if err := s.profiles.UpdateRole(ctx, caller.UID, domain.RoleAdmin, true); err != nil {
		return nil, fmt.Errorf("update root profile: %w", err)
	}
	if err := s.profiles.UpdateStatus(ctx, caller.UID, domain.UserStatusApproved); err != nil {
		return nil, fmt.Errorf("approve root profile: %w", err)
	}

	s.auditAction(ctx, caller, "role.ensure_root", domain.AuditStatusSuccess, nil)

	return s.profiles.Get(ctx, caller.UID)
}

// UpdateUserStatus changes the target's account status. Admin privilege is
// required and the root identity stays approved forever.
func (s *RoleService) UpdateUserStatus(ctx context.Context, caller domain.ActorClaims, targetUID string, status domain.UserStatus) (*domain.Profile, error) {
	if !caller.IsAdmin() {
		s.auditAction(ctx, caller, "user.status", domain.AuditStatusFailure, map[string]interface{}{
			"targetUid": targetUID,
			"reason":    "caller lacks admin privilege",
		})
		return nil, ErrUnauthorized
	}

	target, err := s.profiles.Get(ctx, targetUID)
	if err != nil {
		if errors.Is(err, repo.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load target profile: %w", err)
	}

	if target.IsRoot || domain.IsRootEmail(target.Email, s.rootEmail) {
		s.auditAction(ctx, caller, "user.status", domain.AuditStatusFailure, map[string]interface{}{
			"targetUid": targetUID,
			"reason":    "root identity is immutable",
		})
		return nil, fmt.Errorf("%w: root status is system-assigned", domain.ErrRootImmutable)
	}

	if err := s.profiles.UpdateStatus(ctx, targetUID, status); err != nil {
		return nil, fmt.Errorf("update profile status: %w", err)
	}

	s.auditAction(ctx, caller, "user.status", domain.AuditStatusSuccess, map[string]interface{}{
		"targetUid": targetUID,
		"status":    string(status),
	})

	target.Status = status
	return target, nil
}

// ProvisionIdentity creates or refreshes the profile record when the identity
// provider reports a sign-in. The reserved root address is recognized here and
// receives the root claims immediately; everyone else starts as a pending
// user.
func (s *RoleService) ProvisionIdentity(ctx context.Context, req *domain.ProvisionIdentityRequest) (*domain.Profile, error) {
	isRoot := domain.IsRootEmail(req.Email, s.rootEmail)

	profile := &domain.Profile{
		UID:         req.UID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        domain.RoleUser,
		Status:      domain.UserStatusPending,
		OfficeID:    req.OfficeID,
	}
	if isRoot {
		profile.Role = domain.RoleAdmin
		profile.IsRoot = true
		profile.Status = domain.UserStatusApproved
	}

	out, err := s.profiles.Upsert(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	// Upsert only writes the office on insert; a provisioning payload that
	// carries an office converges existing rows too.
	if req.OfficeID != nil {
		if err := s.profiles.UpdateOffice(ctx, req.UID, req.OfficeID); err != nil {
			return nil, fmt.Errorf("update profile office: %w", err)
		}
		out.OfficeID = req.OfficeID
	}

	if isRoot {
		if err := s.claimsStore.Set(ctx, req.UID, domain.Claims{Role: domain.RoleAdmin, IsRoot: true}); err != nil {
			return nil, fmt.Errorf("set root claims: %w", err)
		}
		// Upsert only writes role fields on insert; root re-provisioning
		// still converges the row.
		if err := s.profiles.UpdateRole(ctx, req.UID, domain.RoleAdmin, true); err != nil {
			return nil, fmt.Errorf("update root profile: %w", err)
		}
	}

	s.log.Info(ctx, "identity provisioned",
		logger.Module("role"),
		logger.Action("identity.provision"),
		zap.String("uid", req.UID),
		zap.Bool("is_root", isRoot),
	)

	return out, nil
}

// ListUsers returns profiles for the user-management view, admin only. An
// email filter narrows the result to the single matching profile; a missing
// match yields an empty list, not an error.
func (s *RoleService) ListUsers(ctx context.Context, caller domain.ActorClaims, email string, limit int) ([]domain.Profile, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	if email != "" {
		p, err := s.profiles.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrProfileNotFound) {
				return []domain.Profile{}, nil
			}
			return nil, fmt.Errorf("load profile by email: %w", err)
		}
		return []domain.Profile{*p}, nil
	}

	profiles, err := s.profiles.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// GetProfile returns the caller's own profile record.
func (s *RoleService) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, repo.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}
