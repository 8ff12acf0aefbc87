package task

import (
	"time"

	"github.com/samber/lo"
)

const (
	StatusPending = "Pending"
	StatusDone    = "Done"

	ActionClaim    = "Claim"
	ActionClaimed  = "Claimed"
	ActionComplete = "Complete"
)

// DefaultActions are attached to tasks created without an explicit list.
var DefaultActions = []string{ActionClaim, ActionComplete}

type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Department  string     `json:"department"`
	Patient     string     `json:"patient"`
	Status      string     `json:"status"`
	Actions     []string   `json:"actions"`
	DueDate     *time.Time `json:"dueDate"`
	DocumentID  *string    `json:"documentId"`
	PhysicianID string     `json:"physicianId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Task) Open() bool { return t.Status != StatusDone }

func (t *Task) Claimed() bool { return lo.Contains(t.Actions, ActionClaimed) }

// Overdue reports an open task whose due date is strictly before now.
func (t *Task) Overdue(now time.Time) bool {
	return t.Open() && t.DueDate != nil && t.DueDate.Before(now)
}

// ManualTaskInput is the add-manual-task request body.
type ManualTaskInput struct {
	Description string   `json:"description"`
	Department  string   `json:"department"`
	Patient     string   `json:"patient"`
	Status      string   `json:"status"`
	Actions     []string `json:"actions"`
	DueDate     *string  `json:"dueDate"`
	DocumentID  *string  `json:"documentId"`
}

// ListFilter narrows an owner's task list. Empty fields do not filter.
type ListFilter struct {
	PhysicianID string
	Status      string
	Department  string
}

type DepartmentPulse struct {
	Department string `json:"department"`
	Open       int    `json:"open"`
	Overdue    int    `json:"overdue"`
	Unclaimed  int    `json:"unclaimed"`
}

type PulseTotals struct {
	Open      int `json:"open"`
	Overdue   int `json:"overdue"`
	Unclaimed int `json:"unclaimed"`
}

type OfficePulse struct {
	Departments []DepartmentPulse `json:"departments"`
	Totals      PulseTotals       `json:"totals"`
}
