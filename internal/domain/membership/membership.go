package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a user's standing inside a single project.
type Role string

const (
	RoleManager      Role = "manager"
	RoleEngineer     Role = "engineer"
	RoleTechnician   Role = "technician"
	RoleCollaborator Role = "collaborator"
)

var roleLevels = map[Role]int{
	RoleManager:      4,
	RoleEngineer:     3,
	RoleTechnician:   2,
	RoleCollaborator: 1,
}

// Level returns the privilege level of the role. Unknown roles are 0 and
// never satisfy a requirement.
func (r Role) Level() int {
	return roleLevels[r]
}

func (r Role) IsValid() bool {
	return r.Level() > 0
}

// AtLeast reports whether r ranks at or above required.
func (r Role) AtLeast(required Role) bool {
	return r.Level() >= required.Level()
}

// Roles lists the known roles from most to least privileged.
func Roles() []Role {
	return []Role{RoleManager, RoleEngineer, RoleTechnician, RoleCollaborator}
}

var (
	ErrNotFound      = errors.New("membership not found")
	ErrAlreadyActive = errors.New("user is already an active member of this project")
	ErrInactive      = errors.New("membership is no longer active")
	ErrInvalidRole   = errors.New("invalid role")
)

// Membership binds one user to one project. Rows are never reactivated:
// once Active is false the row is history and re-adding creates a new row.
type Membership struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	UserID    string     `json:"userId"`
	Role      Role       `json:"role"`
	JoinedAt  time.Time  `json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`
	Active    bool       `json:"active"`
}

// Member is a membership joined with the user it belongs to.
type Member struct {
	Membership
	UserName     string  `json:"userName"`
	UserEmail    string  `json:"userEmail"`
	UserJobTitle *string `json:"userJobTitle,omitempty"`
}

// ProjectMembership is an active membership joined with a project summary.
type ProjectMembership struct {
	Membership
	ProjectName   string `json:"projectName"`
	ProjectStatus string `json:"projectStatus"`
	CreatorID     string `json:"creatorId"`
}

type ListMembersFilter struct {
	Active *bool
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	Role   Role   `json:"role" binding:"required,oneof=manager engineer technician collaborator"`
}

type UpdateMemberRequest struct {
	Role Role `json:"role" binding:"required,oneof=manager engineer technician collaborator"`
}

func New(projectID, userID string, role Role) Membership {
	return Membership{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
		Active:    true,
	}
}
