package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/sitehub/internal/domain/task"
	"github.com/gin-gonic/gin"
)

type TaskStore interface {
	Create(ctx context.Context, t task.Task) error
	GetByID(ctx context.Context, projectID, id string) (task.Task, error)
	List(ctx context.Context, projectID string, f task.ListFilter) ([]task.Task, error)
	Update(ctx context.Context, projectID, id, actorID string, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, projectID, id, actorID string) error
	AddComment(ctx context.Context, projectID string, c task.Comment) error
	ListComments(ctx context.Context, projectID, taskID string) ([]task.Comment, error)
}

type TasksHandler struct {
	tasks TaskStore
}

func NewTasksHandler(tasks TaskStore) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// GET /projects/:projectId/tasks?status=&assigneeId=
func (h *TasksHandler) List(ctx *gin.Context) {
	var f task.ListFilter
	if s := queryString(ctx, "status"); s != nil {
		st := task.Status(*s)
		f.Status = &st
	}
	f.AssigneeID = queryString(ctx, "assigneeId")

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.tasks.List(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list tasks", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	var req task.CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	t := task.NewFromCreateRequest(projectID(ctx), actorID(ctx), req)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.tasks.Create(cctx, t); err != nil {
		h.respondErr(ctx, err, "Could not create task")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

func (h *TasksHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	t, err := h.tasks.GetByID(cctx, projectID(ctx), id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch task")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	var req task.UpdateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.IsEmpty() {
		RespondNoChanges(ctx)
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	t, err := h.tasks.Update(cctx, projectID(ctx), id, actorID(ctx), req)
	if err != nil {
		h.respondErr(ctx, err, "Could not update task")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.tasks.Delete(cctx, projectID(ctx), id, actorID(ctx)); err != nil {
		h.respondErr(ctx, err, "Could not delete task")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// POST /projects/:projectId/tasks/:taskId/comments is open to any member.
func (h *TasksHandler) AddComment(ctx *gin.Context) {
	taskID, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	var req task.CreateCommentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c := task.NewComment(taskID, actorID(ctx), req.Body)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.tasks.AddComment(cctx, projectID(ctx), c); err != nil {
		h.respondErr(ctx, err, "Could not add comment")
		return
	}

	ctx.JSON(http.StatusCreated, c)
}

func (h *TasksHandler) ListComments(ctx *gin.Context) {
	taskID, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.tasks.ListComments(cctx, projectID(ctx), taskID)
	if err != nil {
		h.respondErr(ctx, err, "Could not list comments")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *TasksHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		RespondNotFound(ctx, "Task not found")
	case errors.Is(err, task.ErrAssigneeNotMember):
		RespondError(ctx, http.StatusUnprocessableEntity, "assignee_not_member", err.Error(), nil)
	case errors.Is(err, task.ErrNoChanges):
		RespondNoChanges(ctx)
	default:
		RespondInternal(ctx, msg, err)
	}
}
