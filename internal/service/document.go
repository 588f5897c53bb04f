package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docroute-api/internal/domain"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	ErrOfficeNotFound = repo.ErrOfficeNotFound

	// ErrOfficeArchived indicates a workflow step targets an archived office
	ErrOfficeArchived = errors.New("office is archived and cannot receive documents")

	// ErrActorMismatch indicates the request body names a different identity
	// than the authenticated caller
	ErrActorMismatch = errors.New("request identity does not match the authenticated caller")
)

// DocumentStore is the slice of DocumentRepository the workflow service needs.
type DocumentStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, d *domain.Document) (*domain.Document, error)
	Get(ctx context.Context, docID string) (*domain.Document, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, docID string) (*domain.Document, error)
	UpdateState(ctx context.Context, tx pgx.Tx, d *domain.Document) error
	List(ctx context.Context, params domain.ListDocumentsParams) ([]domain.Document, error)
}

// OfficeStore is the slice of OfficeRepository the workflow service needs.
type OfficeStore interface {
	Get(ctx context.Context, officeID string) (*domain.Office, error)
}

// DocumentService drives the routing workflow. All transitions derive from
// the history array; decisions run under a row lock so concurrent decisions
// on one document serialize.
type DocumentService struct {
	documents DocumentStore
	offices   OfficeStore
	audit     AuditSink
	log       *logger.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(documents DocumentStore, offices OfficeStore, audit AuditSink, log *logger.Logger) *DocumentService {
	return &DocumentService{
		documents: documents,
		offices:   offices,
		audit:     audit,
		log:       log,
	}
}

func (s *DocumentService) auditAction(ctx context.Context, caller domain.ActorClaims, action string, status domain.AuditStatus, details map[string]interface{}) {
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
			logger.Module("document"),
			logger.Action(action),
			zap.Error(err),
		)
	}
}

// CreateDocument registers a document and activates the first workflow step.
// Every destination office must exist and be active at creation time.
func (s *DocumentService) CreateDocument(ctx context.Context, caller domain.ActorClaims, req *domain.CreateDocumentRequest) (*domain.Document, error) {
	if req.UserID != caller.UID {
		return nil, ErrActorMismatch
	}

	for _, step := range req.Workflow {
		office, err := s.offices.Get(ctx, step.DestinationOfficeID)
		if err != nil {
			if errors.Is(err, repo.ErrOfficeNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrOfficeNotFound, step.DestinationOfficeID)
			}
			return nil, fmt.Errorf("validate destination office: %w", err)
		}
		if office.Status != domain.OfficeStatusActive {
			return nil, fmt.Errorf("%w: %s", ErrOfficeArchived, office.Name)
		}
	}

	doc, err := domain.NewDocument(
		uuid.NewString(),
		req.Title,
		caller.UID,
		req.UserOfficeID,
		req.UserOfficeName,
		req.Steps(),
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	created, err := s.documents.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.auditAction(ctx, caller, "document.create", domain.AuditStatusSuccess, map[string]interface{}{
		"documentId": created.ID,
		"title":      created.Title,
		"steps":      len(req.Workflow),
	})

	return created, nil
}

// Decide applies a sign or reject decision to the document's active step on
// behalf of the caller's office. Runs inside a transaction with the document
// row locked, so the single-active-step invariant holds under concurrency.
func (s *DocumentService) Decide(ctx context.Context, caller domain.ActorClaims, docID string, req *domain.DecideDocumentRequest) (*domain.Document, error) {
	if req.UserID != caller.UID {
		return nil, ErrActorMismatch
	}

	decision := domain.Decision(req.NewStatus)

	tx, err := s.documents.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin decision transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	doc, err := s.documents.GetForUpdate(ctx, tx, docID)
	if err != nil {
		return nil, err
	}

	signer := domain.SignedBy{UID: req.UserID, Name: req.UserDisplayName}
	if err := doc.ApplyDecision(req.UserOfficeID, decision, signer, time.Now().UTC()); err != nil {
		s.auditAction(ctx, caller, "document.decide", domain.AuditStatusFailure, map[string]interface{}{
			"documentId": docID,
			"decision":   string(decision),
			"reason":     err.Error(),
		})
		return nil, err
	}

	if err := s.documents.UpdateState(ctx, tx, doc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	s.auditAction(ctx, caller, "document.decide", domain.AuditStatusSuccess, map[string]interface{}{
		"documentId": docID,
		"decision":   string(decision),
		"status":     string(doc.CurrentStatus),
	})

	return doc, nil
}

// GetDocument retrieves a single document.
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*domain.Document, error) {
	return s.documents.Get(ctx, docID)
}

// ListDocuments retrieves documents matching params, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, params domain.ListDocumentsParams) ([]domain.Document, error) {
	docs, err := s.documents.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
