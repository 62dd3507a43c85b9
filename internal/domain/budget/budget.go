package budget

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound  = errors.New("budget item not found")
	ErrNoChanges = errors.New("no fields to update")
)

type Item struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"projectId"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	PlannedAmount float64    `json:"plannedAmount"`
	SpentAmount   float64    `json:"spentAmount"`
	PlannedDate   *time.Time `json:"plannedDate,omitempty"`
	PaidDate      *time.Time `json:"paidDate,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Summary is the financial overview of a project's budget.
type Summary struct {
	ProjectID    string           `json:"projectId"`
	TotalPlanned float64          `json:"totalPlanned"`
	TotalSpent   float64          `json:"totalSpent"`
	Balance      float64          `json:"balance"`
	PercentSpent float64          `json:"percentSpent"`
	OverdueItems int              `json:"overdueItems"`
	ByCategory   []CategoryTotals `json:"byCategory"`
}

type CategoryTotals struct {
	Category string  `json:"category"`
	Planned  float64 `json:"planned"`
	Spent    float64 `json:"spent"`
}

type ListFilter struct {
	Category *string
	Status   *Status
}

type CreateItemRequest struct {
	Category      string     `json:"category" binding:"required,min=2,max=80"`
	Description   string     `json:"description" binding:"required,min=2,max=255"`
	PlannedAmount float64    `json:"plannedAmount" binding:"gte=0"`
	PlannedDate   *time.Time `json:"plannedDate"`
}

type UpdateItemRequest struct {
	Category      *string    `json:"category" binding:"omitempty,min=2,max=80"`
	Description   *string    `json:"description" binding:"omitempty,min=2,max=255"`
	PlannedAmount *float64   `json:"plannedAmount" binding:"omitempty,gte=0"`
	SpentAmount   *float64   `json:"spentAmount" binding:"omitempty,gte=0"`
	PlannedDate   *time.Time `json:"plannedDate"`
	PaidDate      *time.Time `json:"paidDate"`
	Status        *Status    `json:"status" binding:"omitempty,oneof=planned approved paid cancelled"`
}

func (r UpdateItemRequest) IsEmpty() bool {
	return r.Category == nil && r.Description == nil && r.PlannedAmount == nil &&
		r.SpentAmount == nil && r.PlannedDate == nil && r.PaidDate == nil && r.Status == nil
}

type RegisterPaymentRequest struct {
	Amount   float64    `json:"amount" binding:"required,gt=0"`
	PaidDate *time.Time `json:"paidDate"`
}

func NewFromCreateRequest(projectID string, req CreateItemRequest) Item {
	now := time.Now().UTC()

	return Item{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Category:      req.Category,
		Description:   req.Description,
		PlannedAmount: req.PlannedAmount,
		SpentAmount:   0,
		PlannedDate:   req.PlannedDate,
		Status:        StatusPlanned,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Finalize derives balance and percent spent from the totals.
func (s *Summary) Finalize() {
	s.Balance = s.TotalPlanned - s.TotalSpent

	if s.TotalPlanned > 0 {
		s.PercentSpent = roundTo1(s.TotalSpent / s.TotalPlanned * 100)
	} else {
		s.PercentSpent = 0
	}

	if s.ByCategory == nil {
		s.ByCategory = []CategoryTotals{}
	}
}

func roundTo1(v float64) float64 {
	if v < 0 {
		return -roundTo1(-v)
	}
	return float64(int64(v*10+0.5)) / 10
}
