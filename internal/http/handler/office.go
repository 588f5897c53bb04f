package handler

import (
	"encoding/json"
	"net/http"

	"docroute-api/internal/auth"
	"docroute-api/internal/domain"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OfficeHandler struct {
	offices *service.OfficeService
}

func NewOfficeHandler(offices *service.OfficeService) *OfficeHandler {
	return &OfficeHandler{offices: offices}
}

// Create handles POST /v1/offices
func (h *OfficeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	var req domain.CreateOfficeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "creating office",
		logger.Module("office"),
		logger.Action("office.create"),
		zap.String("name", req.Name),
	)

	office, err := h.offices.CreateOffice(ctx, authCtx.Actor(), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusCreated, office)
}

// List handles GET /v1/offices
func (h *OfficeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	offices, err := h.offices.ListOffices(ctx, includeArchived)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	if offices == nil {
		offices = []domain.Office{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": offices})
}

// Archive handles POST /v1/offices/{officeId}:archive
func (h *OfficeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	officeID := chi.URLParam(r, "officeId")

	log.Info(ctx, "archiving office",
		logger.Module("office"),
		logger.Action("office.archive"),
		zap.String("office_id", officeID),
	)

	office, err := h.offices.ArchiveOffice(ctx, authCtx.Actor(), officeID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, office)
}
