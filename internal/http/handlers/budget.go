package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/budget"
	"github.com/gin-gonic/gin"
)

type BudgetStore interface {
	Create(ctx context.Context, it budget.Item) error
	List(ctx context.Context, projectID string, f budget.ListFilter) ([]budget.Item, error)
	Update(ctx context.Context, projectID, id string, req budget.UpdateItemRequest) (budget.Item, error)
	RegisterPayment(ctx context.Context, projectID, id string, amount float64, paidAt time.Time) (budget.Item, error)
	Delete(ctx context.Context, projectID, id string) error
	Summary(ctx context.Context, projectID string) (budget.Summary, error)
}

type BudgetHandler struct {
	budget BudgetStore
}

func NewBudgetHandler(store BudgetStore) *BudgetHandler {
	return &BudgetHandler{budget: store}
}

// GET /projects/:projectId/budget?category=&status=
func (h *BudgetHandler) List(ctx *gin.Context) {
	var f budget.ListFilter
	f.Category = queryString(ctx, "category")
	if s := queryString(ctx, "status"); s != nil {
		st := budget.Status(*s)
		f.Status = &st
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.budget.List(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list budget items", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *BudgetHandler) Summary(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	s, err := h.budget.Summary(cctx, projectID(ctx))
	if err != nil {
		RespondInternal(ctx, "Could not build budget summary", err)
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *BudgetHandler) Create(ctx *gin.Context) {
	var req budget.CreateItemRequest
	if !BindJSON(ctx, &req) {
		return
	}

	it := budget.NewFromCreateRequest(projectID(ctx), req)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.budget.Create(cctx, it); err != nil {
		RespondInternal(ctx, "Could not create budget item", err)
		return
	}

	ctx.JSON(http.StatusCreated, it)
}

func (h *BudgetHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "itemId")
	if !ok {
		return
	}

	var req budget.UpdateItemRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.IsEmpty() {
		RespondNoChanges(ctx)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	it, err := h.budget.Update(cctx, projectID(ctx), id, req)
	if err != nil {
		h.respondErr(ctx, err, "Could not update budget item")
		return
	}

	ctx.JSON(http.StatusOK, it)
}

// POST /projects/:projectId/budget/:itemId/payments
func (h *BudgetHandler) RegisterPayment(ctx *gin.Context) {
	id, ok := pathID(ctx, "itemId")
	if !ok {
		return
	}

	var req budget.RegisterPaymentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	paidAt := time.Now().UTC()
	if req.PaidDate != nil {
		paidAt = req.PaidDate.UTC()
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	it, err := h.budget.RegisterPayment(cctx, projectID(ctx), id, req.Amount, paidAt)
	if err != nil {
		h.respondErr(ctx, err, "Could not register payment")
		return
	}

	ctx.JSON(http.StatusOK, it)
}

func (h *BudgetHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "itemId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.budget.Delete(cctx, projectID(ctx), id); err != nil {
		h.respondErr(ctx, err, "Could not delete budget item")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *BudgetHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, budget.ErrNotFound):
		RespondNotFound(ctx, "Budget item not found")
	case errors.Is(err, budget.ErrNoChanges):
		RespondNoChanges(ctx)
	default:
		RespondInternal(ctx, msg, err)
	}
}
