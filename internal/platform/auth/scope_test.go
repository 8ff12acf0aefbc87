package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ehr/docportal/internal/platform/apperr"
)

func strPtr(s string) *string { return &s }

func TestScopeOwner(t *testing.T) {
	tests := []struct {
		name    string
		id      *Identity
		want    string
		wantErr error
	}{
		{"physician owns self", &Identity{UserID: "P1", Role: RolePhysician}, "P1", nil},
		{"physician ignores stray link", &Identity{UserID: "P1", Role: RolePhysician, PhysicianID: strPtr("P9")}, "P1", nil},
		{"staff uses link", &Identity{UserID: "S1", Role: RoleStaff, PhysicianID: strPtr("P1")}, "P1", nil},
		{"staff without link", &Identity{UserID: "S1", Role: RoleStaff}, "", apperr.ErrValidation},
		{"staff with blank link", &Identity{UserID: "S1", Role: RoleStaff, PhysicianID: strPtr("  ")}, "", apperr.ErrValidation},
		{"attorney denied", &Identity{UserID: "A1", Role: RoleAttorney, PhysicianID: strPtr("P1")}, "", apperr.ErrForbidden},
		{"unknown role denied", &Identity{UserID: "X", Role: Role(42)}, "", apperr.ErrForbidden},
		{"no identity", nil, "", apperr.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScopeOwner(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if got != "" {
					t.Errorf("expected empty owner on error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"Physician": RolePhysician,
		"staff":     RoleStaff,
		" ATTORNEY": RoleAttorney,
	} {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestIdentity_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	live := &Identity{ExpiresAt: now.Add(time.Minute), RefreshExpiresAt: now.Add(time.Hour)}
	if live.Expired(now) {
		t.Error("expected live session")
	}

	accessGone := &Identity{ExpiresAt: now.Add(-time.Second), RefreshExpiresAt: now.Add(time.Hour)}
	if !accessGone.Expired(now) {
		t.Error("expected expired access token")
	}

	refreshGone := &Identity{ExpiresAt: now.Add(time.Hour), RefreshExpiresAt: now}
	if !refreshGone.Expired(now) {
		t.Error("expected expired refresh window")
	}

	if (&Identity{}).Expired(now) {
		t.Error("zero timestamps should not expire")
	}
}

func TestOwnerFromContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), &Identity{UserID: "S1", Role: RoleStaff, PhysicianID: strPtr("P1")})
	owner, id, err := OwnerFromContext(ctx)
	if err != nil || owner != "P1" || id.UserID != "S1" {
		t.Fatalf("unexpected result %q %+v %v", owner, id, err)
	}

	if _, _, err := OwnerFromContext(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
