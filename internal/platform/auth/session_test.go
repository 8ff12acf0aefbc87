package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-unit-tests-only")

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func mintToken(t *testing.T, claims SessionClaims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return s
}

func validClaims() SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
		},
		Email:            "staff@clinic.test",
		Role:             "Staff",
		PhysicianID:      strPtr("phys-9"),
		RefreshExpiresAt: jwt.NewNumericDate(testNow.Add(24 * time.Hour)),
	}
}

func newTestResolver(store RevocationStore) *TokenResolver {
	return NewTokenResolver(TokenConfig{
		Secret:      testSecret,
		CookieName:  "docportal.session-token",
		Revocations: store,
		Now:         func() time.Time { return testNow },
	})
}

func TestTokenResolver_Cookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: "docportal.session-token", Value: mintToken(t, validClaims(), testSecret)})

	id, err := newTestResolver(nil).Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "user-123" || id.Role != RoleStaff {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.PhysicianID == nil || *id.PhysicianID != "phys-9" {
		t.Errorf("expected physician link phys-9, got %v", id.PhysicianID)
	}
	if !id.RefreshExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Errorf("unexpected refresh expiry %s", id.RefreshExpiresAt)
	}
}

func TestTokenResolver_BearerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, validClaims(), testSecret))

	if _, err := newTestResolver(nil).Resolve(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenResolver_FailsClosed(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second))

	noExp := validClaims()
	noExp.ExpiresAt = nil

	badRole := validClaims()
	badRole.Role = "admin"

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"garbage", "Bearer not.a.jwt"},
		{"wrong key", "Bearer " + mintToken(t, validClaims(), []byte("another-key"))},
		{"expired", "Bearer " + mintToken(t, expired, testSecret)},
		{"no expiry", "Bearer " + mintToken(t, noExp, testSecret)},
		{"unknown role", "Bearer " + mintToken(t, badRole, testSecret)},
		{"no subject", "Bearer " + mintToken(t, noSubject, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			id, err := newTestResolver(nil).Resolve(context.Background(), req)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if id != nil {
				t.Errorf("expected nil identity, got %+v", id)
			}
		})
	}
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (s stubRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], s.err
}

func TestTokenResolver_Revoked(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, validClaims(), testSecret))

	_, err := newTestResolver(stubRevocations{revoked: map[string]bool{"jti-1": true}}).Resolve(context.Background(), req)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}

	_, err = newTestResolver(stubRevocations{err: errors.New("redis down")}).Resolve(context.Background(), req)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected store failure to fail closed, got %v", err)
	}
}

func newBearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
