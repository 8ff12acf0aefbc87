package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/docportal/internal/platform/apperr"
)

// Role is the closed set of account roles.
type Role int

const (
	RolePhysician Role = iota + 1
	RoleStaff
	RoleAttorney
)

func (r Role) String() string {
	switch r {
	case RolePhysician:
		return "Physician"
	case RoleStaff:
		return "Staff"
	case RoleAttorney:
		return "Attorney"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole accepts the stored role names, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "physician":
		return RolePhysician, nil
	case "staff":
		return RoleStaff, nil
	case "attorney":
		return RoleAttorney, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// ErrUnauthenticated is returned by every Resolver when a request carries no
// usable session.
var ErrUnauthenticated = fmt.Errorf("%w: no valid session", apperr.ErrUnauthorized)

// Identity is the authenticated caller. PhysicianID is nil for physicians
// and for staff accounts that were never linked.
type Identity struct {
	UserID           string
	Email            string
	Role             Role
	PhysicianID      *string
	TokenID          string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Expired reports whether either the access or the refresh expiry is at or
// before now. Zero timestamps are not checked.
func (i *Identity) Expired(now time.Time) bool {
	if !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt) {
		return true
	}
	if !i.RefreshExpiresAt.IsZero() && !now.Before(i.RefreshExpiresAt) {
		return true
	}
	return false
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
