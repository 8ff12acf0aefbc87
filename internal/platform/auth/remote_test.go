package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionServer(t *testing.T, body any, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("docportal.session-token"); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{}"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func cookieRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "docportal.session-token", Value: "opaque"})
	return req
}

func TestRemoteResolver_Session(t *testing.T) {
	srv := sessionServer(t, map[string]any{
		"user": map[string]any{
			"id":          "staff-1",
			"email":       "s@clinic.test",
			"role":        "Staff",
			"physicianId": "phys-1",
		},
		"expires": "2026-06-01T00:00:00Z",
	}, http.StatusOK)

	id, err := NewRemoteResolver(srv.URL, time.Second).Resolve(context.Background(), cookieRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "staff-1" || id.Role != RoleStaff {
		t.Errorf("unexpected identity %+v", id)
	}
	if id.PhysicianID == nil || *id.PhysicianID != "phys-1" {
		t.Errorf("expected physician link, got %v", id.PhysicianID)
	}
	want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !id.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %s, got %s", want, id.ExpiresAt)
	}
}

func TestRemoteResolver_Anonymous(t *testing.T) {
	srv := sessionServer(t, map[string]any{}, http.StatusOK)
	r := NewRemoteResolver(srv.URL, time.Second)

	if _, err := r.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated without cookies, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), cookieRequest()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for empty session, got %v", err)
	}
}

func TestRemoteResolver_ProviderFailure(t *testing.T) {
	srv := sessionServer(t, map[string]string{"error": "boom"}, http.StatusInternalServerError)

	_, err := NewRemoteResolver(srv.URL, time.Second).Resolve(context.Background(), cookieRequest())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRemoteResolver_UnknownRole(t *testing.T) {
	srv := sessionServer(t, map[string]any{
		"user": map[string]any{"id": "u1", "role": "Nurse"},
	}, http.StatusOK)

	_, err := NewRemoteResolver(srv.URL, time.Second).Resolve(context.Background(), cookieRequest())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
