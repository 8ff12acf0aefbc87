package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/db"
)

type docRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &docRepoPG{pool: pool}
}

func (r *docRepoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

const docCols = `id, patient_name, dob, doi, claim_number, status, physician_id,
	file_name, blob_path, gcs_file_link, brief_summary, document_summary, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.PatientName, &d.DOB, &d.DOI, &d.ClaimNumber, &d.Status, &d.PhysicianID,
		&d.FileName, &d.BlobPath, &d.GCSFileLink, &d.BriefSummary, &d.DocumentSummary, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Document not found")
	}
	return &d, err
}

func collectDocuments(rows pgx.Rows) ([]*Document, error) {
	defer rows.Close()
	items := []*Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// where renders f as a WHERE clause. Placeholders start at $1.
func (f Filter) where() (string, []any) {
	conds := []string{"physician_id = $1"}
	args := []any{f.PhysicianID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Search != "" {
		add(`patient_name ILIKE '%%' || $%d || '%%'`, escapeLike(f.Search))
	}
	if f.PatientName != "" {
		add("patient_name = $%d", f.PatientName)
	}
	if f.DOB != "" {
		add("dob = $%d", f.DOB)
	}
	if f.DOI != "" {
		add("doi = $%d", f.DOI)
	}
	if f.ClaimNumber != "" {
		add("claim_number = $%d", f.ClaimNumber)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *docRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Document, error) {
	where, args := f.where()
	query := `SELECT ` + docCols + ` FROM documents` + where + ` ORDER BY updated_at DESC, id`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

func (r *docRepoPG) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

func (r *docRepoPG) GetByID(ctx context.Context, physicianID, id string) (*Document, error) {
	return scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+docCols+` FROM documents WHERE id = $1 AND physician_id = $2`, id, physicianID))
}

// Documents without a claim number count as distinct claims.
func (r *docRepoPG) RecentByClaim(ctx context.Context, physicianID string, limit int) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+docCols+` FROM (
			SELECT DISTINCT ON (COALESCE(claim_number, id)) `+docCols+`
			FROM documents
			WHERE physician_id = $1
			ORDER BY COALESCE(claim_number, id), created_at DESC
		) latest
		ORDER BY created_at DESC
		LIMIT $2`, physicianID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent documents: %w", err)
	}
	return collectDocuments(rows)
}

func (r *docRepoPG) PatientNames(ctx context.Context, physicianID, query string, limit int) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT patient_name FROM documents
		WHERE physician_id = $1 AND patient_name ILIKE '%' || $2 || '%'
		ORDER BY patient_name
		LIMIT $3`, physicianID, escapeLike(query), limit)
	if err != nil {
		return nil, fmt.Errorf("patient names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

const alertCols = `id, document_id, alert_type, title, date, status, description,
	is_resolved, resolved_at, resolved_by, created_at, updated_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.DocumentID, &a.AlertType, &a.Title, &a.Date, &a.Status, &a.Description,
		&a.IsResolved, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *docRepoPG) AlertsFor(ctx context.Context, documentIDs []string) ([]Alert, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE document_id = ANY($1) ORDER BY created_at DESC`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *docRepoPG) SnapshotsFor(ctx context.Context, documentIDs []string) ([]SummarySnapshot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, document_id, dx, key_concern, next_step, body_part, created_at
		FROM summary_snapshots WHERE document_id = ANY($1) ORDER BY created_at DESC`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("summary snapshots: %w", err)
	}
	defer rows.Close()
	var out []SummarySnapshot
	for rows.Next() {
		var s SummarySnapshot
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Dx, &s.KeyConcern, &s.NextStep, &s.BodyPart, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *docRepoPG) ADLsFor(ctx context.Context, documentIDs []string) ([]ADL, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, document_id, adls_affected, work_restrictions
		FROM adls WHERE document_id = ANY($1)`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("adls: %w", err)
	}
	defer rows.Close()
	var out []ADL
	for rows.Next() {
		var a ADL
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.ADLsAffected, &a.WorkRestrictions); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *docRepoPG) SummariesFor(ctx context.Context, documentIDs []string) ([]Summary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, document_id, type, date, summary
		FROM document_summaries WHERE document_id = ANY($1) ORDER BY date DESC NULLS LAST`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("document summaries: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Type, &s.Date, &s.Summary); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *docRepoPG) VerifyPatient(ctx context.Context, physicianID string, key PatientKey) (int64, error) {
	f := Filter{PhysicianID: physicianID, PatientName: key.PatientName, DOB: key.DOB, DOI: key.DOI}
	where, args := f.where()
	args = append(args, StatusVerified)
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(
		`UPDATE documents SET status = $%[1]d, updated_at = NOW()%[2]s AND status <> $%[1]d`, len(args), where),
		args...)
	if err != nil {
		return 0, fmt.Errorf("verify documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *docRepoPG) Patch(ctx context.Context, physicianID, id string, p Patch) (*Document, error) {
	d, err := scanDocument(r.conn(ctx).QueryRow(ctx, `
		UPDATE documents SET
			patient_name     = COALESCE($3, patient_name),
			dob              = COALESCE($4, dob),
			doi              = COALESCE($5, doi),
			claim_number     = COALESCE($6, claim_number),
			status           = COALESCE($7, status),
			brief_summary    = COALESCE($8, brief_summary),
			document_summary = COALESCE($9, document_summary),
			updated_at       = NOW()
		WHERE id = $1 AND physician_id = $2
		RETURNING `+docCols,
		id, physicianID, p.PatientName, p.DOB, p.DOI, p.ClaimNumber, p.Status, p.BriefSummary, p.DocumentSummary))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("patch document: %w", err)
	}
	return d, nil
}

// UpdatePatient rewrites the natural key on every matching document and
// carries a rename through to the tenant's tasks. Run it inside a
// transaction.
func (r *docRepoPG) UpdatePatient(ctx context.Context, physicianID string, u PatientUpdate) (int64, error) {
	q := r.conn(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE documents SET
			patient_name = COALESCE($4, patient_name),
			dob          = COALESCE($5, dob),
			doi          = COALESCE($6, doi),
			claim_number = COALESCE($7, claim_number),
			updated_at   = NOW()
		WHERE physician_id = $1 AND patient_name = $2 AND dob = $3`,
		physicianID, u.PatientName, u.DOB, u.NewPatientName, u.NewDOB, u.DOI, u.ClaimNumber)
	if err != nil {
		return 0, fmt.Errorf("update patient documents: %w", err)
	}
	n := tag.RowsAffected()

	if n > 0 && u.NewPatientName != nil && *u.NewPatientName != u.PatientName {
		if _, err := q.Exec(ctx, `
			UPDATE tasks SET patient = $3, updated_at = NOW()
			WHERE physician_id = $1 AND patient = $2`,
			physicianID, u.PatientName, *u.NewPatientName); err != nil {
			return 0, fmt.Errorf("update patient tasks: %w", err)
		}
	}
	return n, nil
}

func (r *docRepoPG) ResolveAlert(ctx context.Context, physicianID, alertID, userID string, at time.Time) (*Alert, error) {
	q := r.conn(ctx)
	a, err := scanAlert(q.QueryRow(ctx, `
		UPDATE alerts a SET is_resolved = TRUE, resolved_at = $4, resolved_by = $3, updated_at = NOW()
		FROM documents d
		WHERE a.id = $1 AND a.document_id = d.id AND d.physician_id = $2 AND NOT a.is_resolved
		RETURNING a.id, a.document_id, a.alert_type, a.title, a.date, a.status, a.description,
			a.is_resolved, a.resolved_at, a.resolved_by, a.created_at, a.updated_at`,
		alertID, physicianID, userID, at))
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts a JOIN documents d ON d.id = a.document_id
			WHERE a.id = $1 AND d.physician_id = $2
		)`, alertID, physicianID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	if exists {
		return nil, apperr.Conflict("Alert already resolved")
	}
	return nil, apperr.NotFound("Alert not found")
}
