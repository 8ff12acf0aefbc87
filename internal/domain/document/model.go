package document

import (
	"strings"
	"time"
)

const (
	StatusPending  = "pending"
	StatusFailed   = "failed"
	StatusVerified = "verified"

	// StatusAll disables the status filter on list requests.
	StatusAll = "all"
)

// Document is one uploaded file and the patient and claim metadata
// extracted from it. PhysicianID is the owning tenant.
type Document struct {
	ID              string    `json:"id"`
	PatientName     string    `json:"patientName"`
	DOB             *string   `json:"dob"`
	DOI             *string   `json:"doi"`
	ClaimNumber     *string   `json:"claimNumber"`
	Status          string    `json:"status"`
	PhysicianID     string    `json:"physicianId"`
	FileName        *string   `json:"fileName"`
	BlobPath        *string   `json:"blobPath"`
	GCSFileLink     *string   `json:"gcsFileLink"`
	BriefSummary    *string   `json:"briefSummary"`
	DocumentSummary *string   `json:"documentSummary"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// StoredPath returns the blob location, preferring the object path over the
// legacy link.
func (d *Document) StoredPath() string {
	for _, p := range []*string{d.BlobPath, d.GCSFileLink} {
		if p != nil && strings.TrimSpace(*p) != "" {
			return *p
		}
	}
	return ""
}

type Alert struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"documentId"`
	AlertType   string     `json:"alertType"`
	Title       string     `json:"title"`
	Date        *string    `json:"date"`
	Status      *string    `json:"status"`
	Description *string    `json:"description"`
	IsResolved  bool       `json:"isResolved"`
	ResolvedAt  *time.Time `json:"resolvedAt"`
	ResolvedBy  *string    `json:"resolvedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type SummarySnapshot struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Dx         *string   `json:"dx"`
	KeyConcern *string   `json:"keyConcern"`
	NextStep   *string   `json:"nextStep"`
	BodyPart   *string   `json:"bodyPart"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ADL records activities of daily living affected by the injury.
type ADL struct {
	ID               string  `json:"id"`
	DocumentID       string  `json:"documentId"`
	ADLsAffected     *string `json:"adlsAffected"`
	WorkRestrictions *string `json:"workRestrictions"`
}

type Summary struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Type       *string    `json:"type"`
	Date       *time.Time `json:"date"`
	Summary    *string    `json:"summary"`
}

// Detail is a document with all of its satellite records.
type Detail struct {
	Document
	Alerts            []Alert           `json:"alerts"`
	SummarySnapshots  []SummarySnapshot `json:"summarySnapshots"`
	ADL               *ADL              `json:"adl"`
	DocumentSummaries []Summary         `json:"documentSummaries"`
}

// WithAlerts is a document and its alerts.
type WithAlerts struct {
	Document
	Alerts []Alert `json:"alerts"`
}

// Filter selects an owner's documents. The same value drives both the page
// query and the total count. Empty fields do not filter.
type Filter struct {
	PhysicianID string
	Status      string
	// Search is a case-insensitive substring of the patient name.
	Search      string
	PatientName string
	DOB         string
	DOI         string
	ClaimNumber string
}

// PatientKey identifies a patient by natural key within one tenant.
type PatientKey struct {
	PatientName string
	DOB         string
	DOI         string
}

// Patch is a partial document update; nil fields are left unchanged.
type Patch struct {
	PatientName     *string `json:"patientName"`
	DOB             *string `json:"dob"`
	DOI             *string `json:"doi"`
	ClaimNumber     *string `json:"claimNumber"`
	Status          *string `json:"status"`
	BriefSummary    *string `json:"briefSummary"`
	DocumentSummary *string `json:"documentSummary"`
}

func (p Patch) Empty() bool {
	return p.PatientName == nil && p.DOB == nil && p.DOI == nil && p.ClaimNumber == nil &&
		p.Status == nil && p.BriefSummary == nil && p.DocumentSummary == nil
}

// PatientUpdate renames or re-keys a patient across every document that
// shares (PatientName, DOB).
type PatientUpdate struct {
	PatientName    string  `json:"patientName"`
	DOB            string  `json:"dob"`
	NewPatientName *string `json:"newPatientName"`
	NewDOB         *string `json:"newDob"`
	DOI            *string `json:"doi"`
	ClaimNumber    *string `json:"claimNumber"`
}

// Patient is the natural-key view returned after a patient update.
type Patient struct {
	PatientName string  `json:"patientName"`
	DOB         string  `json:"dob"`
	DOI         *string `json:"doi,omitempty"`
	ClaimNumber *string `json:"claimNumber,omitempty"`
}

type FileLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
