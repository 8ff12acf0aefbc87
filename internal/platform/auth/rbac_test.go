package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/docportal/internal/platform/apperr"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		id      *Identity
		allowed bool
		kind    error
	}{
		{"physician", session(RolePhysician), true, nil},
		{"staff", session(RoleStaff), true, nil},
		{"attorney", session(RoleAttorney), false, apperr.ErrForbidden},
		{"no session", nil, false, apperr.ErrUnauthorized},
	}

	mw := RequireRole(RolePhysician, RoleStaff)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.id))
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())

			reached := false
			err := mw(func(echo.Context) error {
				reached = true
				return nil
			})(c)

			if reached != tt.allowed {
				t.Errorf("expected reached=%v, got %v", tt.allowed, reached)
			}
			if tt.kind != nil && !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
			if tt.allowed && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequireRole_Message(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), session(RoleAttorney))))

	err := RequireRole(RolePhysician)(func(echo.Context) error { return nil })(c)
	_, msg := apperr.Status(err)
	if msg != "Required role: Physician" {
		t.Errorf("unexpected message %q", msg)
	}
}
