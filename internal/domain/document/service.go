package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/blobstore"
	"github.com/ehr/docportal/internal/platform/db"
	"github.com/ehr/docportal/internal/platform/events"
	"github.com/ehr/docportal/pkg/pagination"
)

const (
	recentLimit     = 10
	suggestionLimit = 5
)

type Service struct {
	docs    Repository
	tx      db.Transactor
	events  events.Publisher
	blobs   blobstore.Store
	blobTTL time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

type Options struct {
	Events events.Publisher
	// Blobs is nil when object storage is not configured.
	Blobs   blobstore.Store
	BlobTTL time.Duration
	Logger  zerolog.Logger
}

func NewService(docs Repository, tx db.Transactor, opts Options) *Service {
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}
	if opts.BlobTTL <= 0 {
		opts.BlobTTL = 15 * time.Minute
	}
	return &Service{
		docs:    docs,
		tx:      tx,
		events:  opts.Events,
		blobs:   opts.Blobs,
		blobTTL: opts.BlobTTL,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// NormalizeStatus maps the "all" sentinel and blanks to no filter.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, StatusAll) {
		return ""
	}
	return s
}

// ListDocuments returns one page of the owner's documents and the total for
// the same filter.
func (s *Service) ListDocuments(ctx context.Context, f Filter, pg pagination.Params) ([]*Document, int, error) {
	f.Status = NormalizeStatus(f.Status)
	f.Search = strings.TrimSpace(f.Search)

	total, err := s.docs.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.docs.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) GetDocument(ctx context.Context, owner, id string) (*Document, error) {
	return s.docs.GetByID(ctx, owner, id)
}

func (s *Service) FailedDocuments(ctx context.Context, owner string) ([]*Document, error) {
	return s.docs.List(ctx, Filter{PhysicianID: owner, Status: StatusFailed}, 0, 0)
}

func (s *Service) RecentPatients(ctx context.Context, owner string) ([]*Document, error) {
	return s.docs.RecentByClaim(ctx, owner, recentLimit)
}

// PatientDocuments returns the owner's documents matching the natural-key
// parts given, each with its satellite records.
func (s *Service) PatientDocuments(ctx context.Context, f Filter) ([]Detail, error) {
	if f.PatientName == "" && f.DOB == "" && f.ClaimNumber == "" {
		return nil, apperr.Validation("patientName, dob or claimNumber is required")
	}
	items, err := s.docs.List(ctx, f, 0, 0)
	if err != nil {
		return nil, err
	}
	return s.withSatellites(ctx, items)
}

func (s *Service) withSatellites(ctx context.Context, items []*Document) ([]Detail, error) {
	out := make([]Detail, 0, len(items))
	if len(items) == 0 {
		return out, nil
	}
	ids := lo.Map(items, func(d *Document, _ int) string { return d.ID })

	alerts, err := s.docs.AlertsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.docs.SnapshotsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	adls, err := s.docs.ADLsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	summaries, err := s.docs.SummariesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	alertsBy := lo.GroupBy(alerts, func(a Alert) string { return a.DocumentID })
	snapshotsBy := lo.GroupBy(snapshots, func(x SummarySnapshot) string { return x.DocumentID })
	adlBy := lo.KeyBy(adls, func(a ADL) string { return a.DocumentID })
	summariesBy := lo.GroupBy(summaries, func(x Summary) string { return x.DocumentID })

	for _, d := range items {
		det := Detail{
			Document:          *d,
			Alerts:            nonNil(alertsBy[d.ID]),
			SummarySnapshots:  nonNil(snapshotsBy[d.ID]),
			DocumentSummaries: nonNil(summariesBy[d.ID]),
		}
		if a, ok := adlBy[d.ID]; ok {
			det.ADL = &a
		}
		out = append(out, det)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Recommendations suggests up to five patient names containing query.
func (s *Service) Recommendations(ctx context.Context, owner, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("patientName is required")
	}
	names, err := s.docs.PatientNames(ctx, owner, query, suggestionLimit)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, apperr.NotFound("No patients found")
	}
	return names, nil
}

// SearchPatient returns the owner's documents whose patient name contains
// query, each with its alerts.
func (s *Service) SearchPatient(ctx context.Context, owner, query string) ([]WithAlerts, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("patientName is required")
	}
	items, err := s.docs.List(ctx, Filter{PhysicianID: owner, Search: query}, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("No documents found for patient")
	}

	ids := lo.Map(items, func(d *Document, _ int) string { return d.ID })
	alerts, err := s.docs.AlertsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	alertsBy := lo.GroupBy(alerts, func(a Alert) string { return a.DocumentID })

	return lo.Map(items, func(d *Document, _ int) WithAlerts {
		return WithAlerts{Document: *d, Alerts: nonNil(alertsBy[d.ID])}
	}), nil
}

// VerifyPatient marks the patient's unverified documents verified in one
// transaction. A second call for the same patient finds nothing to verify.
func (s *Service) VerifyPatient(ctx context.Context, owner, actorID string, key PatientKey) (int64, error) {
	key.PatientName = strings.TrimSpace(key.PatientName)
	if key.PatientName == "" {
		return 0, apperr.Validation("patient_name is required")
	}

	var count int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.docs.VerifyPatient(ctx, owner, key)
		count = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, apperr.NotFound("No documents found to verify for patient %s", key.PatientName)
	}

	events.Emit(ctx, s.events, s.logger, events.Event{
		Type:        events.DocumentVerified,
		PhysicianID: owner,
		ActorID:     actorID,
		Subject:     key.PatientName,
		Data:        map[string]any{"patientName": key.PatientName, "dob": key.DOB, "doi": key.DOI, "count": count},
	})
	return count, nil
}

func (s *Service) UpdateDocument(ctx context.Context, owner, actorID, id string, p Patch) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("documentId is required")
	}
	if p.Empty() {
		return nil, apperr.Validation("No fields to update")
	}
	if p.PatientName != nil && strings.TrimSpace(*p.PatientName) == "" {
		return nil, apperr.Validation("patientName cannot be empty")
	}
	if p.Status != nil && strings.TrimSpace(*p.Status) == "" {
		return nil, apperr.Validation("status cannot be empty")
	}

	d, err := s.docs.Patch(ctx, owner, id, p)
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, s.logger, events.Event{
		Type: events.DocumentUpdated, PhysicianID: owner, ActorID: actorID, Subject: d.ID, Data: p,
	})
	return d, nil
}

// UpdatePatient cascades a patient key change to every owner document with
// the same (patientName, dob), all or nothing.
func (s *Service) UpdatePatient(ctx context.Context, owner, actorID string, u PatientUpdate) (int64, Patient, error) {
	u.PatientName = strings.TrimSpace(u.PatientName)
	u.DOB = strings.TrimSpace(u.DOB)

	var missing []string
	if u.PatientName == "" {
		missing = append(missing, "patientName")
	}
	if u.DOB == "" {
		missing = append(missing, "dob")
	}
	if len(missing) > 0 {
		return 0, Patient{}, apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if u.NewPatientName != nil && strings.TrimSpace(*u.NewPatientName) == "" {
		return 0, Patient{}, apperr.Validation("newPatientName cannot be empty")
	}
	if u.NewPatientName == nil && u.NewDOB == nil && u.DOI == nil && u.ClaimNumber == nil {
		return 0, Patient{}, apperr.Validation("No fields to update")
	}

	var count int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.docs.UpdatePatient(ctx, owner, u)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("No documents found for patient")
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, Patient{}, err
	}

	p := Patient{
		PatientName: lo.FromPtrOr(u.NewPatientName, u.PatientName),
		DOB:         lo.FromPtrOr(u.NewDOB, u.DOB),
		DOI:         u.DOI,
		ClaimNumber: u.ClaimNumber,
	}
	events.Emit(ctx, s.events, s.logger, events.Event{
		Type:        events.PatientUpdated,
		PhysicianID: owner,
		ActorID:     actorID,
		Subject:     p.PatientName,
		Data:        map[string]any{"previous": map[string]string{"patientName": u.PatientName, "dob": u.DOB}, "patient": p, "count": count},
	})
	return count, p, nil
}

func (s *Service) ResolveAlert(ctx context.Context, owner, actorID, alertID string) (*Alert, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, apperr.Validation("alert id is required")
	}
	return s.docs.ResolveAlert(ctx, owner, alertID, actorID, s.now().UTC())
}

// FileLink presigns a download URL for the document's stored file.
func (s *Service) FileLink(ctx context.Context, owner, id string) (*FileLink, error) {
	if s.blobs == nil {
		return nil, apperr.Unavailable("Document storage is not configured")
	}
	d, err := s.docs.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	path := d.StoredPath()
	if path == "" {
		return nil, apperr.NotFound("No file stored for document")
	}

	now := s.now()
	u, err := s.blobs.PresignGet(ctx, path, s.blobTTL)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, apperr.NotFound("No file stored for document")
	}
	if err != nil {
		return nil, fmt.Errorf("presign document %s: %w", id, err)
	}
	return &FileLink{URL: u, ExpiresAt: now.Add(s.blobTTL).UTC()}, nil
}
