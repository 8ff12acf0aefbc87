package auth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// GuardedPrefixes are the page paths the route guard intercepts. Anything
// else bypasses it.
var GuardedPrefixes = []string{
	"/dashboard",
	"/tasks",
	"/add-staff",
	"/upload",
	"/documents",
	"/staff-dashboard",
	"/attorney-dashboard",
}

// routeRule redirects callers whose role is not admitted on any of its
// prefixes. Rules are evaluated in order and the first violation wins.
type routeRule struct {
	prefixes []string
	redirect func(Role) string
}

func only(role Role, target string) func(Role) string {
	return func(r Role) string {
		if r != role {
			return target
		}
		return ""
	}
}

// /tasks is listed under both the physician-only and staff-only rules, so no
// role is currently admitted there.
var routeRules = []routeRule{
	{
		prefixes: []string{"/dashboard"},
		redirect: func(r Role) string {
			switch r {
			case RoleStaff:
				return "/staff-dashboard"
			case RoleAttorney:
				return "/attorney-dashboard"
			case RolePhysician:
				return ""
			}
			return "/dashboard"
		},
	},
	{prefixes: []string{"/add-staff", "/tasks"}, redirect: only(RolePhysician, "/dashboard")},
	{prefixes: []string{"/upload", "/documents", "/tasks", "/staff-dashboard"}, redirect: only(RoleStaff, "/dashboard")},
	{prefixes: []string{"/attorney-dashboard"}, redirect: only(RoleAttorney, "/dashboard")},
}

// Decision is the outcome of guarding one request.
type Decision struct {
	Forward  bool
	Redirect string
}

// Decide applies the guard to an already-resolved identity. id is nil when
// the session could not be resolved. now is the single time snapshot used
// for both expiry checks.
func Decide(id *Identity, path string, now time.Time, signIn string) Decision {
	if !Guarded(path) {
		return Decision{Forward: true}
	}
	if id == nil || id.Expired(now) {
		return Decision{Redirect: signInURL(signIn, path)}
	}
	for _, rule := range routeRules {
		if !matchesAny(path, rule.prefixes) {
			continue
		}
		if target := rule.redirect(id.Role); target != "" {
			return Decision{Redirect: target}
		}
	}
	return Decision{Forward: true}
}

// Guarded reports whether path falls under one of GuardedPrefixes.
func Guarded(path string) bool {
	return matchesAny(path, GuardedPrefixes)
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func signInURL(signIn, callback string) string {
	return signIn + "?callbackUrl=" + url.QueryEscape(callback)
}

type GuardConfig struct {
	Resolver   Resolver
	SignInPath string
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Guard is page middleware that redirects before any page handler runs.
func Guard(cfg GuardConfig) echo.MiddlewareFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !Guarded(path) {
				return next(c)
			}

			id, err := cfg.Resolver.Resolve(req.Context(), req)
			if err != nil {
				id = nil
			}

			d := Decide(id, path, cfg.Now(), cfg.SignInPath)
			if !d.Forward {
				cfg.Logger.Debug().
					Str("path", path).
					Str("redirect", d.Redirect).
					Msg("route guard redirect")
				return c.Redirect(http.StatusFound, d.Redirect)
			}

			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			return next(c)
		}
	}
}
