package document

import (
	"context"
	"time"
)

// Repository reads and writes documents and their satellites. Every method
// takes the owning physician and never touches another tenant's rows.
type Repository interface {
	List(ctx context.Context, f Filter, limit, offset int) ([]*Document, error)
	Count(ctx context.Context, f Filter) (int, error)
	GetByID(ctx context.Context, physicianID, id string) (*Document, error)
	RecentByClaim(ctx context.Context, physicianID string, limit int) ([]*Document, error)
	PatientNames(ctx context.Context, physicianID, query string, limit int) ([]string, error)

	AlertsFor(ctx context.Context, documentIDs []string) ([]Alert, error)
	SnapshotsFor(ctx context.Context, documentIDs []string) ([]SummarySnapshot, error)
	ADLsFor(ctx context.Context, documentIDs []string) ([]ADL, error)
	SummariesFor(ctx context.Context, documentIDs []string) ([]Summary, error)

	// VerifyPatient sets status verified on the patient's documents that are
	// not yet verified and returns how many changed.
	VerifyPatient(ctx context.Context, physicianID string, key PatientKey) (int64, error)
	Patch(ctx context.Context, physicianID, id string, p Patch) (*Document, error)
	UpdatePatient(ctx context.Context, physicianID string, u PatientUpdate) (int64, error)
	ResolveAlert(ctx context.Context, physicianID, alertID, userID string, at time.Time) (*Alert, error)
}
