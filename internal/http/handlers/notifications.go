package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/notification"
	"github.com/geocoder89/sitehub/internal/utils"
	"github.com/gin-gonic/gin"
)

type NotificationStore interface {
	ListForUser(ctx context.Context, userID string, f notification.ListFilter) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationsHandler struct {
	notifications NotificationStore
}

func NewNotificationsHandler(store NotificationStore) *NotificationsHandler {
	return &NotificationsHandler{notifications: store}
}

// GET /notifications?unread=true&limit=
func (h *NotificationsHandler) List(ctx *gin.Context) {
	f := notification.ListFilter{
		UnreadOnly: ctx.Query("unread") == "true",
		Limit:      utils.ParseLimit(ctx.Query("limit"), 50, 200),
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.notifications.ListForUser(cctx, actorID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list notifications", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /notifications/:id/read
func (h *NotificationsHandler) MarkRead(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.notifications.MarkRead(cctx, actorID(ctx), id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			RespondNotFound(ctx, "Notification not found")
			return
		}
		RespondInternal(ctx, "Could not mark notification read", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
