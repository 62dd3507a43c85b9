package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/gin-gonic/gin"
)

type MembershipStore interface {
	Add(ctx context.Context, m membership.Membership) error
	GetMember(ctx context.Context, projectID, membershipID string) (membership.Member, error)
	ListMembers(ctx context.Context, projectID string, f membership.ListMembersFilter) ([]membership.Member, error)
	UpdateRole(ctx context.Context, projectID, membershipID string, role membership.Role) (membership.Membership, error)
	Remove(ctx context.Context, projectID, membershipID string) error
}

type MembersHandler struct {
	members MembershipStore
}

func NewMembersHandler(members MembershipStore) *MembersHandler {
	return &MembersHandler{members: members}
}

// GET /projects/:projectId/members?active=true|false
func (h *MembersHandler) List(ctx *gin.Context) {
	var f membership.ListMembersFilter
	if raw := ctx.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RespondBadRequest(ctx, "active must be true or false", nil)
			return
		}
		f.Active = &v
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.members.ListMembers(cctx, projectID(ctx), f)
	if err != nil {
		RespondInternal(ctx, "Could not list members", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *MembersHandler) Add(ctx *gin.Context) {
	var req membership.AddMemberRequest
	if !BindJSON(ctx, &req) {
		return
	}

	m := membership.New(projectID(ctx), req.UserID, req.Role)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.members.Add(cctx, m); err != nil {
		switch {
		case errors.Is(err, membership.ErrAlreadyActive):
			RespondConflict(ctx, "already_member", "User is already an active member of this project")
		case errors.Is(err, membership.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, project.ErrNotFound):
			RespondNotFound(ctx, "Project not found")
		default:
			RespondInternal(ctx, "Could not add member", err)
		}
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

func (h *MembersHandler) Get(ctx *gin.Context) {
	memberID, ok := pathID(ctx, "memberId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	m, err := h.members.GetMember(cctx, projectID(ctx), memberID)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch member")
		return
	}

	ctx.JSON(http.StatusOK, m)
}

func (h *MembersHandler) UpdateRole(ctx *gin.Context) {
	memberID, ok := pathID(ctx, "memberId")
	if !ok {
		return
	}

	var req membership.UpdateMemberRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	m, err := h.members.UpdateRole(cctx, projectID(ctx), memberID, req.Role)
	if err != nil {
		h.respondErr(ctx, err, "Could not update member")
		return
	}

	ctx.JSON(http.StatusOK, m)
}

// DELETE /projects/:projectId/members/:memberId is a soft removal.
func (h *MembersHandler) Remove(ctx *gin.Context) {
	memberID, ok := pathID(ctx, "memberId")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.members.Remove(cctx, projectID(ctx), memberID); err != nil {
		h.respondErr(ctx, err, "Could not remove member")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *MembersHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, membership.ErrNotFound):
		RespondNotFound(ctx, "Member not found")
	case errors.Is(err, membership.ErrInactive):
		RespondConflict(ctx, "membership_inactive", "Membership is no longer active")
	default:
		RespondInternal(ctx, msg, err)
	}
}
