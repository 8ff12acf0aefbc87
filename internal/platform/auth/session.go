package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Resolver turns an inbound request into an Identity. Implementations fail
// closed: any problem with the session yields ErrUnauthenticated and a nil
// identity.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Identity, error)
}

// SessionClaims is the payload of a session token issued by the auth provider.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email            string           `json:"email"`
	Role             string           `json:"role"`
	PhysicianID      *string          `json:"physicianId,omitempty"`
	RefreshExpiresAt *jwt.NumericDate `json:"refreshExpiresAt,omitempty"`
}

type TokenConfig struct {
	Secret      []byte
	Issuer      string
	Audience    string
	CookieName  string
	Revocations RevocationStore
	// Now defaults to time.Now.
	Now func() time.Time
}

// TokenResolver verifies HS256 session tokens locally. The token is read
// from the session cookie, falling back to an Authorization bearer header.
type TokenResolver struct {
	cfg TokenConfig
}

func NewTokenResolver(cfg TokenConfig) *TokenResolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Revocations == nil {
		cfg.Revocations = NopRevocationStore{}
	}
	return &TokenResolver{cfg: cfg}
}

func (t *TokenResolver) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	raw := t.tokenFromRequest(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.cfg.Now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := claims.identity()
	if err != nil {
		return nil, err
	}

	if id.TokenID != "" {
		revoked, err := t.cfg.Revocations.IsRevoked(ctx, id.TokenID)
		if err != nil || revoked {
			return nil, ErrUnauthenticated
		}
	}
	return id, nil
}

func (t *TokenResolver) tokenFromRequest(r *http.Request) string {
	if t.cfg.CookieName != "" {
		if c, err := r.Cookie(t.cfg.CookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (c *SessionClaims) identity() (*Identity, error) {
	if c.Subject == "" {
		return nil, ErrUnauthenticated
	}
	role, err := ParseRole(c.Role)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	id := &Identity{
		UserID:      c.Subject,
		Email:       c.Email,
		Role:        role,
		PhysicianID: nonEmpty(c.PhysicianID),
		TokenID:     c.ID,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	if c.RefreshExpiresAt != nil {
		id.RefreshExpiresAt = c.RefreshExpiresAt.Time
	}
	return id, nil
}
