package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrNoChanges         = errors.New("no fields to update")
	ErrAssigneeNotMember = errors.New("assignee is not an active member of this project")
)

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListFilter struct {
	Status     *Status
	AssigneeID *string
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=2,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=4000"`
	Status      Status     `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    Priority   `json:"priority" binding:"omitempty,oneof=low medium high"`
	AssigneeID  *string    `json:"assigneeId" binding:"omitempty,uuid"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=2,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=4000"`
	Status      *Status    `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    *Priority  `json:"priority" binding:"omitempty,oneof=low medium high"`
	AssigneeID  *string    `json:"assigneeId" binding:"omitempty,uuid"`
	DueDate     *time.Time `json:"dueDate"`
}

func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil &&
		r.Priority == nil && r.AssigneeID == nil && r.DueDate == nil
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required,min=1,max=4000"`
}

func NewFromCreateRequest(projectID, createdBy string, req CreateTaskRequest) Task {
	now := time.Now().UTC()

	status := req.Status
	if status == "" {
		status = StatusTodo
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	return Task{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewComment(taskID, authorID, body string) Comment {
	return Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}
