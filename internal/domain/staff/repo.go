package staff

import "context"

type Repository interface {
	ListByPhysician(ctx context.Context, physicianID string) ([]*Member, error)
}
