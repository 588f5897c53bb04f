package handler

import (
	"encoding/json"
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

type UserHandler struct {
	roles *service.RoleService
}

func NewUserHandler(roles *service.RoleService) *UserHandler {
	return &UserHandler{roles: roles}
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	profile, err := h.roles.GetProfile(ctx, authCtx.ActorID)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// List handles GET /v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
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

	profiles, err := h.roles.ListUsers(ctx, authCtx.Actor(), r.URL.Query().Get("email"), limit)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	if profiles == nil {
		profiles = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": profiles})
}

// AssignRole handles POST /v1/roles:assign
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	var req domain.AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "assigning role",
		logger.Module("user"),
		logger.Action("role.assign"),
		zap.String("target_uid", req.TargetUID),
		zap.String("role", req.Role.String()),
	)

	profile, err := h.roles.AssignRole(ctx, authCtx.Actor(), &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// EnsureRootClaims handles POST /v1/roles:ensure-root
func (h *UserHandler) EnsureRootClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	profile, err := h.roles.EnsureRootClaims(ctx, authCtx.Actor())
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateStatus handles POST /v1/users/{userId}/status
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	targetUID := chi.URLParam(r, "userId")

	var req domain.UpdateUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "updating user status",
		logger.Module("user"),
		logger.Action("user.status"),
		zap.String("target_uid", targetUID),
		zap.String("status", string(req.Status)),
	)

	profile, err := h.roles.UpdateUserStatus(ctx, authCtx.Actor(), targetUID, req.Status)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
