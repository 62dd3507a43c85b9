package material

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("material not found")
	ErrNoChanges         = errors.New("no fields to update")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Material struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	Name          string    `json:"name"`
	Category      *string   `json:"category,omitempty"`
	Unit          string    `json:"unit"`
	UnitPrice     float64   `json:"unitPrice"`
	Supplier      *string   `json:"supplier,omitempty"`
	Description   *string   `json:"description,omitempty"`
	StockQuantity float64   `json:"stockQuantity"`
	UsedQuantity  float64   `json:"usedQuantity"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StockValue is what the material left on site is worth.
func (m Material) StockValue() float64 {
	return m.StockQuantity * m.UnitPrice
}

type ListFilter struct {
	Category *string
	Search   string
}

type CreateMaterialRequest struct {
	Name          string  `json:"name" binding:"required,min=2,max=200"`
	Category      *string `json:"category" binding:"omitempty,max=80"`
	Unit          string  `json:"unit" binding:"required,max=20"`
	UnitPrice     float64 `json:"unitPrice" binding:"gte=0"`
	Supplier      *string `json:"supplier" binding:"omitempty,max=200"`
	Description   *string `json:"description" binding:"omitempty,max=2000"`
	StockQuantity float64 `json:"stockQuantity" binding:"gte=0"`
}

type UpdateMaterialRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=2,max=200"`
	Category    *string  `json:"category" binding:"omitempty,max=80"`
	Unit        *string  `json:"unit" binding:"omitempty,max=20"`
	UnitPrice   *float64 `json:"unitPrice" binding:"omitempty,gte=0"`
	Supplier    *string  `json:"supplier" binding:"omitempty,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=2000"`
}

func (r UpdateMaterialRequest) IsEmpty() bool {
	return r.Name == nil && r.Category == nil && r.Unit == nil &&
		r.UnitPrice == nil && r.Supplier == nil && r.Description == nil
}

// QuantityRequest is the body of both the stock and consume operations.
type QuantityRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

func NewFromCreateRequest(projectID string, req CreateMaterialRequest) Material {
	now := time.Now().UTC()

	return Material{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Name:          req.Name,
		Category:      req.Category,
		Unit:          req.Unit,
		UnitPrice:     req.UnitPrice,
		Supplier:      req.Supplier,
		Description:   req.Description,
		StockQuantity: req.StockQuantity,
		UsedQuantity:  0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
