package handler

import (
	"net/http"
	"strconv"

	"docroute-api/internal/auth"
	"docroute-api/internal/domain"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"
)

type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /v1/audit-logs
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.audit.ListAuditLog(ctx, authCtx.Actor(), limit)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}
