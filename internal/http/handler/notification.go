package handler

import (
	"net/http"

	"docroute-api/internal/auth"
	"docroute-api/internal/domain"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	items, err := h.notifications.ListNotifications(ctx, authCtx.Actor())
	if err != nil {
		handleServiceError(w, ctx, log, err)
		return
	}

	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": items})
}
