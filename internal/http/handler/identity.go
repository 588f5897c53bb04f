package handler

import (
	"encoding/json"
	"net/http"

	"docroute-api/internal/auth"
	"docroute-api/internal/domain"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"

	"go.uber.org/zap"
)

// IdentityHandler serves the service-to-service provisioning webhook
// the identity provider calls on first sign-in.
type IdentityHandler struct {
	roles *service.RoleService
}

func NewIdentityHandler(roles *service.RoleService) *IdentityHandler {
	return &IdentityHandler{roles: roles}
}

// Provision handles POST /internal/identities. Only S2S callers are
// accepted; user tokens are rejected even when otherwise valid.
func (h *IdentityHandler) Provision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}
	if authCtx.AuthMethod != "s2s" {
		log.Warn(ctx, "provisioning attempted with a user token",
			logger.Module("identity"),
			zap.String("actor_id", authCtx.ActorID),
		)
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "this endpoint is restricted to service callers")
		return
	}

	var req domain.ProvisionIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
		return
	}

	log.Info(ctx, "provisioning identity",
		logger.Module("identity"),
		logger.Action("identity.provision"),
		zap.String("client", authCtx.Client),
		zap.String("uid", req.UID),
	)

	profile, err := h.roles.ProvisionIdentity(ctx, &req)
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}
