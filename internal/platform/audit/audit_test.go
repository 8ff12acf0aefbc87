package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/docportal/internal/platform/auth"
	"github.com/ehr/docportal/internal/platform/db"
)

type chanRecorder struct {
	entries chan Entry
	ctxs    chan context.Context
	err     error
}

func newChanRecorder(err error) *chanRecorder {
	return &chanRecorder{entries: make(chan Entry, 1), ctxs: make(chan context.Context, 1), err: err}
}

func (r *chanRecorder) Record(ctx context.Context, e Entry) error {
	r.ctxs <- ctx
	r.entries <- e
	return r.err
}

func waitEntry(t *testing.T, r *chanRecorder) (Entry, context.Context) {
	t.Helper()
	select {
	case ctx := <-r.ctxs:
		return <-r.entries, ctx
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
	}
	return Entry{}, nil
}

func TestAsyncRecorder_SurvivesCancellation(t *testing.T) {
	next := newChanRecorder(nil)
	rec := NewAsyncRecorder(next, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := rec.Record(ctx, Entry{UserID: "u1", Action: "Viewed patient list"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()

	e, got := waitEntry(t, next)
	if e.UserID != "u1" {
		t.Errorf("expected u1, got %q", e.UserID)
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be stamped")
	}
	if got.Err() != nil {
		t.Errorf("detached context should not be cancelled, got %v", got.Err())
	}
	if db.ConnFromContext(got) != nil || db.TxFromContext(got) != nil {
		t.Error("detached context must not carry the request connection")
	}
}

func TestAsyncRecorder_FailureIsSwallowed(t *testing.T) {
	next := newChanRecorder(errors.New("insert failed"))
	rec := NewAsyncRecorder(next, zerolog.Nop())

	if err := rec.Record(context.Background(), Entry{UserID: "u1"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	waitEntry(t, next)
}

func TestFromRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/get-recent-patients", nil)

	c := e.NewContext(req, httptest.NewRecorder())
	if _, ok := FromRequest(c, "Viewed recent patients"); ok {
		t.Fatal("expected no entry without identity")
	}

	id := &auth.Identity{UserID: "doc-1", Email: "doc@clinic.test", Role: auth.RolePhysician}
	c = e.NewContext(req.WithContext(auth.WithIdentity(req.Context(), id)), httptest.NewRecorder())

	entry, ok := FromRequest(c, "Viewed recent patients")
	if !ok {
		t.Fatal("expected entry")
	}
	if entry.UserID != "doc-1" || entry.Email != "doc@clinic.test" {
		t.Errorf("unexpected actor %+v", entry)
	}
	if entry.Path != "/api/get-recent-patients" || entry.Method != http.MethodGet {
		t.Errorf("unexpected request fields %+v", entry)
	}
}

func TestAccess_NoIdentityRecordsNothing(t *testing.T) {
	next := newChanRecorder(nil)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/staff", nil), httptest.NewRecorder())

	Access(c, next, "Viewed staff")
	select {
	case <-next.entries:
		t.Fatal("expected no entry")
	default:
	}

	Access(c, nil, "Viewed staff")
}
