package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// remoteSession mirrors the auth provider's session endpoint payload. An
// anonymous caller gets an empty object.
type remoteSession struct {
	User *struct {
		ID          string  `json:"id"`
		Email       string  `json:"email"`
		Role        string  `json:"role"`
		PhysicianID *string `json:"physicianId"`
	} `json:"user"`
	Expires string `json:"expires"`
}

// RemoteResolver asks the auth provider for the session belonging to the
// request's cookies. Used when tokens are opaque to this service.
type RemoteResolver struct {
	client     *resty.Client
	sessionURL string
}

func NewRemoteResolver(sessionURL string, timeout time.Duration) *RemoteResolver {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &RemoteResolver{client: client, sessionURL: sessionURL}
}

func (r *RemoteResolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	cookies := req.Cookies()
	if len(cookies) == 0 && req.Header.Get("Authorization") == "" {
		return nil, ErrUnauthenticated
	}

	var sess remoteSession
	call := r.client.R().
		SetContext(ctx).
		SetCookies(cookies).
		SetResult(&sess)
	if h := req.Header.Get("Authorization"); h != "" {
		call.SetHeader("Authorization", h)
	}
	resp, err := call.Get(r.sessionURL)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return nil, ErrUnauthenticated
	}
	if sess.User == nil || sess.User.ID == "" {
		return nil, ErrUnauthenticated
	}

	role, err := ParseRole(sess.User.Role)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	id := &Identity{
		UserID:      sess.User.ID,
		Email:       sess.User.Email,
		Role:        role,
		PhysicianID: nonEmpty(sess.User.PhysicianID),
	}
	if sess.Expires != "" {
		exp, err := time.Parse(time.RFC3339, sess.Expires)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		id.ExpiresAt = exp
	}
	return id, nil
}
