package project

import (
	"errors"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrNoChanges = errors.New("no fields to update")
)

type Project struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	Address        *string    `json:"address,omitempty"`
	Client         *string    `json:"client,omitempty"`
	TotalValue     *float64   `json:"totalValue,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	PlannedEndDate *time.Time `json:"plannedEndDate,omitempty"`
	ActualEndDate  *time.Time `json:"actualEndDate,omitempty"`
	Status         Status     `json:"status"`
	Progress       float64    `json:"progress"`
	CreatorID      string     `json:"creatorId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// UserProject is one entry of a user's project list.
type UserProject struct {
	ProjectID string          `json:"projectId"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Role      membership.Role `json:"role"`
	JoinedAt  time.Time       `json:"joinedAt"`
	IsOwner   bool            `json:"isOwner"`
}

type ListFilter struct {
	Status *Status
}

type CreateProjectRequest struct {
	Name           string     `json:"name" binding:"required,min=3,max=200"`
	Description    *string    `json:"description" binding:"omitempty,max=2000"`
	Address        *string    `json:"address" binding:"omitempty,max=255"`
	Client         *string    `json:"client" binding:"omitempty,max=200"`
	TotalValue     *float64   `json:"totalValue" binding:"omitempty,gte=0"`
	StartDate      *time.Time `json:"startDate"`
	PlannedEndDate *time.Time `json:"plannedEndDate"`
	Status         Status     `json:"status" binding:"omitempty,oneof=planning in_progress paused completed cancelled"`
}

// UpdateProjectRequest is a partial update: nil fields are left untouched.
type UpdateProjectRequest struct {
	Name           *string    `json:"name" binding:"omitempty,min=3,max=200"`
	Description    *string    `json:"description" binding:"omitempty,max=2000"`
	Address        *string    `json:"address" binding:"omitempty,max=255"`
	Client         *string    `json:"client" binding:"omitempty,max=200"`
	TotalValue     *float64   `json:"totalValue" binding:"omitempty,gte=0"`
	StartDate      *time.Time `json:"startDate"`
	PlannedEndDate *time.Time `json:"plannedEndDate"`
	ActualEndDate  *time.Time `json:"actualEndDate"`
	Status         *Status    `json:"status" binding:"omitempty,oneof=planning in_progress paused completed cancelled"`
	Progress       *float64   `json:"progress" binding:"omitempty,min=0,max=100"`
}

func (r UpdateProjectRequest) IsEmpty() bool {
	return r.Name == nil && r.Description == nil && r.Address == nil && r.Client == nil &&
		r.TotalValue == nil && r.StartDate == nil && r.PlannedEndDate == nil &&
		r.ActualEndDate == nil && r.Status == nil && r.Progress == nil
}

// NewFromCreateRequest builds the project together with the creator's
// initial manager membership; both must be persisted atomically.
func NewFromCreateRequest(req CreateProjectRequest, creatorID string) (Project, membership.Membership) {
	now := time.Now().UTC()

	status := req.Status
	if status == "" {
		status = StatusPlanning
	}

	p := Project{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Address:        req.Address,
		Client:         req.Client,
		TotalValue:     req.TotalValue,
		StartDate:      req.StartDate,
		PlannedEndDate: req.PlannedEndDate,
		Status:         status,
		Progress:       0,
		CreatorID:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m := membership.New(p.ID, creatorID, membership.RoleManager)
	m.JoinedAt = now

	return p, m
}

// ClampProgress keeps a computed percentage inside 0..100.
func ClampProgress(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
