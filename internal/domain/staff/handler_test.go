package staff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/audit"
	"github.com/ehr/docportal/internal/platform/auth"
)

type mockStaffRepo struct {
	members []*Member
	owners  map[string]string
	calls   int
	err     error
}

func (m *mockStaffRepo) ListByPhysician(_ context.Context, physicianID string) ([]*Member, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []*Member
	for _, mem := range m.members {
		if m.owners[mem.ID] == physicianID {
			out = append(out, mem)
		}
	}
	return out, nil
}

type countingAudit struct{ n int }

func (a *countingAudit) Record(context.Context, audit.Entry) error {
	a.n++
	return nil
}

func strPtr(s string) *string { return &s }

func newRoster() *mockStaffRepo {
	return &mockStaffRepo{
		members: []*Member{
			{ID: "s-1", FirstName: strPtr("Ana"), LastName: strPtr("Lee"), Email: "ana@clinic.test", Role: "Staff"},
			{ID: "s-2", Email: "bo@clinic.test", Role: "Staff"},
			{ID: "s-3", Email: "cy@other.test", Role: "Staff"},
		},
		owners: map[string]string{"s-1": "phys-1", "s-2": "phys-1", "s-3": "phys-2"},
	}
}

func serve(t *testing.T, repo Repository, id *auth.Identity) (*httptest.ResponseRecorder, *countingAudit, error) {
	t.Helper()
	rec := &countingAudit{}
	h := NewHandler(NewService(repo), rec)

	req := httptest.NewRequest(http.MethodGet, "/api/staff", nil)
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
	}
	resp := httptest.NewRecorder()
	err := h.ListStaff(echo.New().NewContext(req, resp))
	return resp, rec, err
}

func TestListStaff_Physician(t *testing.T) {
	repo := newRoster()
	resp, rec, err := serve(t, repo, &auth.Identity{UserID: "phys-1", Role: auth.RolePhysician})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Staff []Member `json:"staff"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Staff, 2)
	assert.Equal(t, "s-1", body.Staff[0].ID)
	assert.Equal(t, "Ana", *body.Staff[0].FirstName)
	assert.Equal(t, 1, rec.n)
}

func TestListStaff_LinkedStaffSeesOwnersRoster(t *testing.T) {
	repo := newRoster()
	resp, _, err := serve(t, repo, &auth.Identity{UserID: "s-3", Role: auth.RoleStaff, PhysicianID: strPtr("phys-2")})
	require.NoError(t, err)
	assert.Contains(t, resp.Body.String(), "cy@other.test")
	assert.NotContains(t, resp.Body.String(), "ana@clinic.test")
}

func TestListStaff_EmptyIsArray(t *testing.T) {
	resp, _, err := serve(t, &mockStaffRepo{}, &auth.Identity{UserID: "phys-9", Role: auth.RolePhysician})
	require.NoError(t, err)
	assert.JSONEq(t, `{"staff":[]}`, resp.Body.String())
}

func TestListStaff_Rejected(t *testing.T) {
	tests := []struct {
		name string
		id   *auth.Identity
		code int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"staff without link", &auth.Identity{UserID: "s-9", Role: auth.RoleStaff}, http.StatusBadRequest},
		{"attorney", &auth.Identity{UserID: "a-1", Role: auth.RoleAttorney}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRoster()
			_, rec, err := serve(t, repo, tt.id)
			code, _ := apperr.Status(err)
			assert.Equal(t, tt.code, code)
			assert.Zero(t, repo.calls)
			assert.Zero(t, rec.n)
		})
	}
}

func TestListStaff_StoreError(t *testing.T) {
	_, _, err := serve(t, &mockStaffRepo{err: errors.New("timeout")}, &auth.Identity{UserID: "phys-1", Role: auth.RolePhysician})
	code, msg := apperr.Status(err)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", msg)
}
