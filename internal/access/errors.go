package access

import (
	"errors"
	"fmt"

	"github.com/geocoder89/sitehub/internal/domain/membership"
)

// ErrNotAMember is the uniform denial for requesters with no standing in a
// project. It is also returned when the project does not exist.
var ErrNotAMember = errors.New("not a member of this project")

// InsufficientRoleError is returned when the requester is known to the
// project but does not meet the requirement.
type InsufficientRoleError struct {
	// Required is the minimum role. Empty means only the owner qualifies.
	Required membership.Role
	// OwnerAllowed is set when the project owner qualifies regardless of role.
	OwnerAllowed bool
}

func (e *InsufficientRoleError) Error() string {
	switch {
	case e.Required == "":
		return "must be the project owner"
	case e.OwnerAllowed:
		return fmt.Sprintf("must be at least %s or the project owner", e.Required)
	default:
		return fmt.Sprintf("must be at least %s", e.Required)
	}
}

func IsInsufficientRole(err error) bool {
	var target *InsufficientRoleError
	return errors.As(err, &target)
}
