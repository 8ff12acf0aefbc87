package task

import "context"

// Repository stores tasks. Every read and write is scoped to the owning
// physician.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	// GetForUpdate loads an owner's task and locks the row for the rest of
	// the surrounding transaction.
	GetForUpdate(ctx context.Context, physicianID, id string) (*Task, error)
	List(ctx context.Context, f ListFilter) ([]*Task, error)
	UpdateState(ctx context.Context, t *Task) error
}
