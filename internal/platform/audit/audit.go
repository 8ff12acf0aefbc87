// Package audit appends access records for reads and writes of patient data.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/docportal/internal/platform/auth"
	"github.com/ehr/docportal/internal/platform/db"
)

// Entry is one row of the append-only audit_logs table.
type Entry struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// PGRecorder writes entries to audit_logs. It uses the request-scoped
// connection from context when available, falling back to the pool.
type PGRecorder struct {
	pool db.Querier
}

func NewPGRecorder(pool db.Querier) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := db.Pick(ctx, r.pool).Exec(ctx, `
		INSERT INTO audit_logs (user_id, email, action, path, method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.UserID, e.Email, e.Action, e.Path, e.Method, e.Timestamp)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// AsyncRecorder hands entries to another Recorder on a separate goroutine.
// Record always returns nil; failures are logged.
type AsyncRecorder struct {
	next   Recorder
	logger zerolog.Logger
}

func NewAsyncRecorder(next Recorder, logger zerolog.Logger) *AsyncRecorder {
	return &AsyncRecorder{next: next, logger: logger}
}

func (a *AsyncRecorder) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	// The request connection is released as soon as the handler returns, so
	// the detached context must not carry it.
	detached := context.WithValue(context.WithoutCancel(ctx), db.DBConnKey, nil)
	detached = context.WithValue(detached, db.DBTxKey, nil)

	go func() {
		if err := a.next.Record(detached, e); err != nil {
			a.logger.Warn().Err(err).
				Str("user_id", e.UserID).
				Str("action", e.Action).
				Str("path", e.Path).
				Msg("audit entry dropped")
		}
	}()
	return nil
}

// FromRequest builds an entry for the caller of c. The second return is
// false when the request carries no identity.
func FromRequest(c echo.Context, action string) (Entry, bool) {
	id := auth.IdentityFromContext(c.Request().Context())
	if id == nil {
		return Entry{}, false
	}
	return Entry{
		UserID:    id.UserID,
		Email:     id.Email,
		Action:    action,
		Path:      c.Request().URL.Path,
		Method:    c.Request().Method,
		Timestamp: time.Now().UTC(),
	}, true
}

// Access records action for the caller of c. Errors never reach the caller.
func Access(c echo.Context, rec Recorder, action string) {
	if rec == nil {
		return
	}
	e, ok := FromRequest(c, action)
	if !ok {
		return
	}
	_ = rec.Record(c.Request().Context(), e)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
