package task

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/db"
	"github.com/ehr/docportal/internal/platform/events"
)

type Service struct {
	tasks  Repository
	tx     db.Transactor
	events events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(tasks Repository, tx db.Transactor, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{tasks: tasks, tx: tx, events: pub, logger: logger, now: time.Now}
}

// ValidateManualTask checks the required fields of an add-manual-task body.
func ValidateManualTask(in *ManualTaskInput) error {
	var missing []string
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(in.Department) == "" {
		missing = append(missing, "department")
	}
	if strings.TrimSpace(in.Patient) == "" {
		missing = append(missing, "patient")
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CreateManualTask stores a task for owner. Status defaults to Pending and
// actions to [Claim, Complete]; an empty documentId is stored as null.
func (s *Service) CreateManualTask(ctx context.Context, owner, actorID string, in ManualTaskInput) (*Task, error) {
	if err := ValidateManualTask(&in); err != nil {
		return nil, err
	}
	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	t := &Task{
		Description: strings.TrimSpace(in.Description),
		Department:  strings.TrimSpace(in.Department),
		Patient:     strings.TrimSpace(in.Patient),
		Status:      lo.Ternary(in.Status == "", StatusPending, in.Status),
		Actions:     lo.Ternary(len(in.Actions) == 0, append([]string(nil), DefaultActions...), in.Actions),
		DueDate:     due,
		PhysicianID: owner,
	}
	if in.DocumentID != nil && strings.TrimSpace(*in.DocumentID) != "" {
		id := strings.TrimSpace(*in.DocumentID)
		t.DocumentID = &id
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, s.logger, events.Event{
		Type:        events.TaskCreated,
		PhysicianID: owner,
		ActorID:     actorID,
		Subject:     t.ID,
		Data:        t,
	})
	return t, nil
}

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation("dueDate must be an ISO 8601 date")
}

func (s *Service) ListTasks(ctx context.Context, f ListFilter) ([]*Task, error) {
	return s.tasks.List(ctx, f)
}

// OfficePulse returns the owner's tasks with their per-department pulse.
func (s *Service) OfficePulse(ctx context.Context, owner string) ([]*Task, OfficePulse, error) {
	items, err := s.tasks.List(ctx, ListFilter{PhysicianID: owner})
	if err != nil {
		return nil, OfficePulse{}, err
	}
	return items, ComputePulse(items, s.now()), nil
}

// ComputePulse groups tasks by department. Open is status other than Done,
// overdue is open with a due date before now, unclaimed is any task whose
// actions lack Claimed. Departments are sorted by name.
func ComputePulse(items []*Task, now time.Time) OfficePulse {
	groups := lo.GroupBy(items, func(t *Task) string { return t.Department })

	departments := make([]DepartmentPulse, 0, len(groups))
	var totals PulseTotals
	for dept, tasks := range groups {
		p := DepartmentPulse{
			Department: dept,
			Open:       lo.CountBy(tasks, func(t *Task) bool { return t.Open() }),
			Overdue:    lo.CountBy(tasks, func(t *Task) bool { return t.Overdue(now) }),
			Unclaimed:  lo.CountBy(tasks, func(t *Task) bool { return !t.Claimed() }),
		}
		totals.Open += p.Open
		totals.Overdue += p.Overdue
		totals.Unclaimed += p.Unclaimed
		departments = append(departments, p)
	}
	sort.Slice(departments, func(i, j int) bool { return departments[i].Department < departments[j].Department })

	return OfficePulse{Departments: departments, Totals: totals}
}

// Claim replaces the Claim action with Claimed.
func (s *Service) Claim(ctx context.Context, owner, actorID, id string) (*Task, error) {
	var out *Task
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := s.tasks.GetForUpdate(ctx, owner, id)
		if err != nil {
			return err
		}
		if t.Claimed() {
			return apperr.Conflict("Task already claimed")
		}
		if !t.Open() {
			return apperr.Conflict("Task already completed")
		}
		if lo.Contains(t.Actions, ActionClaim) {
			t.Actions = lo.Map(t.Actions, func(a string, _ int) string {
				return lo.Ternary(a == ActionClaim, ActionClaimed, a)
			})
		} else {
			t.Actions = append(t.Actions, ActionClaimed)
		}
		if err := s.tasks.UpdateState(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, s.logger, events.Event{
		Type: events.TaskClaimed, PhysicianID: owner, ActorID: actorID, Subject: out.ID,
	})
	return out, nil
}

// Complete marks a task Done and drops its Complete action.
func (s *Service) Complete(ctx context.Context, owner, actorID, id string) (*Task, error) {
	var out *Task
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		t, err := s.tasks.GetForUpdate(ctx, owner, id)
		if err != nil {
			return err
		}
		if !t.Open() {
			return apperr.Conflict("Task already completed")
		}
		t.Status = StatusDone
		t.Actions = lo.Without(t.Actions, ActionComplete)
		if err := s.tasks.UpdateState(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, s.logger, events.Event{
		Type: events.TaskCompleted, PhysicianID: owner, ActorID: actorID, Subject: out.ID,
	})
	return out, nil
}
