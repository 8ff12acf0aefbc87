package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/db"
)

type taskRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &taskRepoPG{pool: pool}
}

func (r *taskRepoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

const taskCols = `id, description, department, patient, status, actions,
	due_date, document_id, physician_id, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Description, &t.Department, &t.Patient, &t.Status, &t.Actions,
		&t.DueDate, &t.DocumentID, &t.PhysicianID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Task not found")
	}
	return &t, err
}

func (r *taskRepoPG) Create(ctx context.Context, t *Task) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tasks (description, department, patient, status, actions, due_date, document_id, physician_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+taskCols,
		t.Description, t.Department, t.Patient, t.Status, t.Actions, t.DueDate, t.DocumentID, t.PhysicianID)
	created, err := scanTask(row)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	*t = *created
	return nil
}

func (r *taskRepoPG) GetForUpdate(ctx context.Context, physicianID, id string) (*Task, error) {
	return scanTask(r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = $1 AND physician_id = $2 FOR UPDATE`, id, physicianID))
}

func (r *taskRepoPG) List(ctx context.Context, f ListFilter) ([]*Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE physician_id = $1`
	args := []any{f.PhysicianID}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Department != "" {
		args = append(args, f.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *taskRepoPG) UpdateState(ctx context.Context, t *Task) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tasks SET status = $3, actions = $4, updated_at = NOW()
		WHERE id = $1 AND physician_id = $2
		RETURNING updated_at`,
		t.ID, t.PhysicianID, t.Status, t.Actions).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("Task not found")
	}
	return err
}
