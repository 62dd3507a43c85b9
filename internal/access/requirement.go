package access

import "github.com/geocoder89/sitehub/internal/domain/membership"

type requirementKind int

const (
	kindMember requirementKind = iota
	kindRole
	kindModify
	kindOwner
)

// Requirement is what a request must satisfy on a project before the
// handler runs.
type Requirement struct {
	kind requirementKind
	role membership.Role
}

var (
	RequireMember = Requirement{kind: kindMember}
	RequireModify = Requirement{kind: kindModify}
	RequireOwner  = Requirement{kind: kindOwner}
)

// RequireRole demands at least the given role. An empty role means
// collaborator, i.e. any active member.
func RequireRole(role membership.Role) Requirement {
	if role == "" {
		role = membership.RoleCollaborator
	}
	return Requirement{kind: kindRole, role: role}
}

// String is used as a metric label and span attribute.
func (r Requirement) String() string {
	switch r.kind {
	case kindMember:
		return "member"
	case kindRole:
		return "role:" + string(r.role)
	case kindModify:
		return "modify"
	case kindOwner:
		return "owner"
	default:
		return "unknown"
	}
}
