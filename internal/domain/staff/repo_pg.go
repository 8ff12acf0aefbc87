package staff

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/docportal/internal/platform/db"
)

type staffRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

func (r *staffRepoPG) ListByPhysician(ctx context.Context, physicianID string) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, first_name, last_name, email, role, image
		FROM users
		WHERE physician_id = $1
		ORDER BY last_name NULLS LAST, first_name NULLS LAST, email`, physicianID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	items := []*Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Role, &m.Image); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
