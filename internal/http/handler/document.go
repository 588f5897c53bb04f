package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"docroute-api/internal/auth"
	"docroute-api/internal/domain"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Create handles POST /v1/documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	var req domain.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "creating document",
		logger.Module("document"),
		logger.Action("document.create"),
		zap.Int("steps", len(req.Workflow)),
	)

	doc, err := h.documents.CreateDocument(ctx, authCtx.Actor(), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// Decide handles POST /v1/documents/{docId}:decide
func (h *DocumentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	docID := chi.URLParam(r, "docId")

	var req domain.DecideDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "processing decision",
		logger.Module("document"),
		logger.Action("document.decide"),
		zap.String("doc_id", docID),
		zap.String("decision", string(req.NewStatus)),
	)

	doc, err := h.documents.Decide(ctx, authCtx.Actor(), docID, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Get handles GET /v1/documents/{docId}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	docID := chi.URLParam(r, "docId")

	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// List handles GET /v1/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	params := domain.ListDocumentsParams{}

	if ownerID := r.URL.Query().Get("ownerId"); ownerID != "" {
		params.OwnerID = &ownerID
	}
	if officeID := r.URL.Query().Get("officeId"); officeID != "" {
		params.CurrentOfficeID = &officeID
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.DocumentStatus(statusStr)
		if !status.IsValid() {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStatus, "unknown document status")
			return
		}
		params.Status = &status
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be between 1 and 100")
			return
		}
		params.Limit = limit
	}

	docs, err := h.documents.ListDocuments(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": docs})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func handleServiceError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		log.Warn(ctx, "unauthorized action", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "insufficient permissions for this action")
	case errors.Is(err, domain.ErrPermissionDenied):
		log.Warn(ctx, "permission denied", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodePermissionDenied, err.Error())
	case errors.Is(err, domain.ErrRootImmutable):
		log.Warn(ctx, "root mutation refused", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodeRootImmutable, err.Error())
	case errors.Is(err, service.ErrActorMismatch):
		log.Warn(ctx, "actor mismatch", zap.Error(err))
		httperr.Forbidden403(w, ctx, httperr.ErrCodeActorMismatch, "request identity does not match the authenticated caller")
	case errors.Is(err, service.ErrProfileNotFound):
		httperr.NotFound404(w, ctx, "profile not found")
	case errors.Is(err, domain.ErrDocumentNotFound):
		httperr.NotFound404(w, ctx, "document not found")
	case errors.Is(err, service.ErrOfficeNotFound):
		httperr.NotFound404(w, ctx, "office not found")
	case errors.Is(err, domain.ErrNoActiveStep):
		log.Warn(ctx, "no active step for office", zap.Error(err))
		httperr.Conflict409(w, ctx, httperr.ErrCodeNoActiveStep, "document has no active step for this office")
	case errors.Is(err, service.ErrOfficeArchived):
		httperr.Conflict409(w, ctx, httperr.ErrCodeConflict, "office is archived and cannot receive documents")
	case errors.Is(err, service.ErrOfficeInUse):
		httperr.Conflict409(w, ctx, httperr.ErrCodeOfficeInUse, "office has documents in flight and cannot be archived")
	case errors.Is(err, service.ErrOfficeNameTaken):
		httperr.Conflict409(w, ctx, httperr.ErrCodeNameTaken, "an active office already uses this name")
	default:
		log.Error(ctx, "unhandled internal server error", zap.Error(err), zap.String("error_details", err.Error()))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}
