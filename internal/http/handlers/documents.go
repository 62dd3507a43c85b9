package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/document"
	"github.com/gin-gonic/gin"
)

type DocumentStore interface {
	Create(ctx context.Context, d document.Document, v document.Version) error
	List(ctx context.Context, projectID string, f document.ListFilter) ([]document.Document, error)
	AddVersion(ctx context.Context, projectID string, v document.Version) (document.Version, error)
	ListVersions(ctx context.Context, projectID, documentID string) ([]document.Version, error)
	Delete(ctx context.Context, projectID, id string) error
}

type DocumentsHandler struct {
	documents DocumentStore
}

func NewDocumentsHandler(store DocumentStore) *DocumentsHandler {
	return &DocumentsHandler{documents: store}
}

// GET /projects/:projectId/documents?category=
func (h *DocumentsHandler) List(ctx *gin.Context) {
	var f document.ListFilter
	if c := queryString(ctx, "category"); c != nil {
		cat := document.Category(*c)
		f.Category = &cat
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.documents.List(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list documents", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *DocumentsHandler) Create(ctx *gin.Context) {
	var req document.CreateDocumentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	d, v := document.NewFromCreateRequest(projectID(ctx), actorID(ctx), req)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.documents.Create(cctx, d, v); err != nil {
		RespondInternal(ctx, "Could not create document", err)
		return
	}

	ctx.JSON(http.StatusCreated, d)
}

func (h *DocumentsHandler) AddVersion(ctx *gin.Context) {
	docID, ok := pathID(ctx, "documentId")
	if !ok {
		return
	}

	var req document.CreateVersionRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	v, err := h.documents.AddVersion(cctx, projectID(ctx), document.NewVersion(docID, actorID(ctx), req))
	if err != nil {
		h.respondErr(ctx, err, "Could not add version")
		return
	}

	ctx.JSON(http.StatusCreated, v)
}

func (h *DocumentsHandler) ListVersions(ctx *gin.Context) {
	docID, ok := pathID(ctx, "documentId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.documents.ListVersions(cctx, projectID(ctx), docID)
	if err != nil {
		h.respondErr(ctx, err, "Could not list versions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *DocumentsHandler) Delete(ctx *gin.Context) {
	docID, ok := pathID(ctx, "documentId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.documents.Delete(cctx, projectID(ctx), docID); err != nil {
		h.respondErr(ctx, err, "Could not delete document")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *DocumentsHandler) respondErr(ctx *gin.Context, err error, msg string) {
	if errors.Is(err, document.ErrNotFound) {
		RespondNotFound(ctx, "Document not found")
		return
	}
	RespondInternal(ctx, msg, err)
}
