package auth

import (
	"context"

	"github.com/ehr/docportal/internal/platform/apperr"
)

var (
	ErrPhysicianLinkMissing = apperr.Validation("Physician ID not found")
	ErrRoleDenied           = apperr.Forbidden("Role not permitted for this resource")
)

// ScopeOwner derives the physician whose rows the caller may see or change.
// Every branch returns; callers never fall back to client-supplied ids.
func ScopeOwner(id *Identity) (string, error) {
	if id == nil {
		return "", ErrUnauthenticated
	}
	switch id.Role {
	case RolePhysician:
		return id.UserID, nil
	case RoleStaff:
		if p := nonEmpty(id.PhysicianID); p != nil {
			return *p, nil
		}
		return "", ErrPhysicianLinkMissing
	case RoleAttorney:
		return "", ErrRoleDenied
	default:
		return "", ErrRoleDenied
	}
}

// OwnerFromContext applies ScopeOwner to the identity on ctx and returns both.
func OwnerFromContext(ctx context.Context) (string, *Identity, error) {
	id := IdentityFromContext(ctx)
	owner, err := ScopeOwner(id)
	if err != nil {
		return "", nil, err
	}
	return owner, id, nil
}
