package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/chat"
	"github.com/geocoder89/sitehub/internal/utils"
	"github.com/gin-gonic/gin"
)

type ChatStore interface {
	Post(ctx context.Context, m chat.Message, requestID string) error
	List(ctx context.Context, projectID string, f chat.ListFilter) ([]chat.Message, error)
	DeleteOwn(ctx context.Context, projectID, id, authorID string) error
}

type ChatHandler struct {
	chat ChatStore
}

func NewChatHandler(store ChatStore) *ChatHandler {
	return &ChatHandler{chat: store}
}

// GET /projects/:projectId/chat/messages?q=&limit=&offset=
func (h *ChatHandler) List(ctx *gin.Context) {
	f := chat.ListFilter{
		Limit:  utils.ParseLimit(ctx.Query("limit"), 50, 200),
		Offset: utils.ParseOffset(ctx.Query("offset")),
	}
	if q := queryString(ctx, "q"); q != nil {
		f.Query = *q
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.chat.List(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list messages", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// POST /projects/:projectId/chat/messages. Other members are notified by
// the worker.
func (h *ChatHandler) Post(ctx *gin.Context) {
	var req chat.PostMessageRequest
	if !BindJSON(ctx, &req) {
		return
	}

	m := chat.NewMessage(projectID(ctx), actorID(ctx), req.Body)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.chat.Post(cctx, m, requestIDFrom(ctx)); err != nil {
		RespondInternal(ctx, "Could not post message", err)
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

// DELETE /projects/:projectId/chat/messages/:messageId is author only.
func (h *ChatHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "messageId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	err := h.chat.DeleteOwn(cctx, projectID(ctx), id, actorID(ctx))
	switch {
	case err == nil:
		ctx.Status(http.StatusNoContent)
	case errors.Is(err, chat.ErrNotFound):
		RespondNotFound(ctx, "Message not found")
	case errors.Is(err, chat.ErrNotAuthor):
		RespondForbidden(ctx, "not_author", "Only the author can delete this message")
	default:
		RespondInternal(ctx, "Could not delete message", err)
	}
}
