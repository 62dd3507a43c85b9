package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/material"
	"github.com/gin-gonic/gin"
)

type MaterialStore interface {
	Create(ctx context.Context, m material.Material) error
	GetByID(ctx context.Context, projectID, id string) (material.Material, error)
	List(ctx context.Context, projectID string, f material.ListFilter) ([]material.Material, error)
	Update(ctx context.Context, projectID, id string, req material.UpdateMaterialRequest) (material.Material, error)
	AddStock(ctx context.Context, projectID, id string, qty float64) (material.Material, error)
	Consume(ctx context.Context, projectID, id string, qty float64) (material.Material, error)
	Delete(ctx context.Context, projectID, id string) error
}

type MaterialsHandler struct {
	materials MaterialStore
}

func NewMaterialsHandler(store MaterialStore) *MaterialsHandler {
	return &MaterialsHandler{materials: store}
}

// GET /projects/:projectId/materials?category=&q=
func (h *MaterialsHandler) List(ctx *gin.Context) {
	f := material.ListFilter{Category: queryString(ctx, "category")}
	if q := queryString(ctx, "q"); q != nil {
		f.Search = *q
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.materials.List(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list materials", err)
		return
	}

	var stockValue float64
	for _, m := range items {
		stockValue += m.StockValue()
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":      items,
		"count":      len(items),
		"stockValue": stockValue,
	})
}

func (h *MaterialsHandler) Create(ctx *gin.Context) {
	var req material.CreateMaterialRequest
	if !BindJSON(ctx, &req) {
		return
	}

	m := material.NewFromCreateRequest(projectID(ctx), req)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.materials.Create(cctx, m); err != nil {
		RespondInternal(ctx, "Could not create material", err)
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

func (h *MaterialsHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "materialId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	m, err := h.materials.GetByID(cctx, projectID(ctx), id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch material")
		return
	}

	ctx.JSON(http.StatusOK, m)
}

func (h *MaterialsHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "materialId")
	if !ok {
		return
	}

	var req material.UpdateMaterialRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.IsEmpty() {
		RespondNoChanges(ctx)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	m, err := h.materials.Update(cctx, projectID(ctx), id, req)
	if err != nil {
		h.respondErr(ctx, err, "Could not update material")
		return
	}

	ctx.JSON(http.StatusOK, m)
}

// POST /projects/:projectId/materials/:materialId/stock
func (h *MaterialsHandler) AddStock(ctx *gin.Context) {
	h.adjust(ctx, h.materials.AddStock, "Could not add stock")
}

// POST /projects/:projectId/materials/:materialId/consume
func (h *MaterialsHandler) Consume(ctx *gin.Context) {
	h.adjust(ctx, h.materials.Consume, "Could not consume material")
}

func (h *MaterialsHandler) adjust(
	ctx *gin.Context,
	op func(ctx context.Context, projectID, id string, qty float64) (material.Material, error),
	msg string,
) {
	id, ok := pathID(ctx, "materialId")
	if !ok {
		return
	}

	var req material.QuantityRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	m, err := op(cctx, projectID(ctx), id, req.Quantity)
	if err != nil {
		h.respondErr(ctx, err, msg)
		return
	}

	ctx.JSON(http.StatusOK, m)
}

func (h *MaterialsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "materialId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.materials.Delete(cctx, projectID(ctx), id); err != nil {
		h.respondErr(ctx, err, "Could not delete material")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *MaterialsHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, material.ErrNotFound):
		RespondNotFound(ctx, "Material not found")
	case errors.Is(err, material.ErrInsufficientStock):
		RespondConflict(ctx, "insufficient_stock", "Not enough stock to consume that quantity")
	case errors.Is(err, material.ErrNoChanges):
		RespondNoChanges(ctx)
	default:
		RespondInternal(ctx, msg, err)
	}
}
