package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
)

type caseRepo struct{ b *binding }

func (r *caseRepo) Create(_ context.Context, c *domain.Case) error {
	return r.b.do(func(st *state) error {
		for _, existing := range st.cases {
			if existing.Code == c.Code {
				return fmt.Errorf("cases: duplicate code %q", c.Code)
			}
		}
		if c.ID == "" {
			c.ID = newID()
		}
		now := r.b.now()
		c.CreatedAt, c.UpdatedAt = now, now
		st.cases[c.ID] = *c
		return nil
	})
}

func (r *caseRepo) Update(_ context.Context, c *domain.Case) error {
	return r.b.do(func(st *state) error {
		current, ok := st.cases[c.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		// identity columns are fixed at creation
		c.Code = current.Code
		c.CreatorID = current.CreatorID
		c.SourceDepartmentID = current.SourceDepartmentID
		c.CaseType = current.CaseType
		c.Source = current.Source
		c.CreatedAt = current.CreatedAt
		c.UpdatedAt = r.b.now()
		st.cases[c.ID] = *c
		return nil
	})
}

func (r *caseRepo) GetByID(_ context.Context, id string) (*domain.Case, error) {
	var out *domain.Case
	err := r.b.do(func(st *state) error {
		c, ok := st.cases[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &c
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock here: transactions are already serialized.
func (r *caseRepo) GetForUpdate(ctx context.Context, id string) (*domain.Case, error) {
	return r.GetByID(ctx, id)
}

func (r *caseRepo) List(_ context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	var out []domain.Case
	err := r.b.do(func(st *state) error {
		for _, c := range st.cases {
			if !filter.Unrestricted && !visibleTo(c, filter) {
				continue
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func visibleTo(c domain.Case, filter repository.CaseFilter) bool {
	if c.CreatorID == filter.VisibleTo {
		return true
	}
	if c.AssigneeID != nil && *c.AssigneeID == filter.VisibleTo {
		return true
	}
	if c.DepartmentID == nil {
		return false
	}
	for _, id := range filter.DepartmentIDs {
		if id == *c.DepartmentID {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.CaseStatus, status domain.CaseStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *caseRepo) Statistics(_ context.Context, departmentIDs []string, now time.Time) (domain.CaseStatistics, error) {
	var stats domain.CaseStatistics
	if len(departmentIDs) == 0 {
		return stats, nil
	}
	wanted := make(map[string]struct{}, len(departmentIDs))
	for _, id := range departmentIDs {
		wanted[id] = struct{}{}
	}
	weekStart := repository.StartOfWeek(now)
	horizon := now.Add(repository.UpcomingDeadlineWindow)

	err := r.b.do(func(st *state) error {
		for _, c := range st.cases {
			if c.DepartmentID == nil {
				continue
			}
			if _, ok := wanted[*c.DepartmentID]; !ok {
				continue
			}
			if c.Status == domain.CaseStatusClosed && c.ClosedAt != nil && !c.ClosedAt.Before(weekStart) {
				stats.ClosedThisWeek++
			}
			if !c.Status.IsOpen() {
				continue
			}
			stats.Open++
			if c.Deadline == nil {
				continue
			}
			switch {
			case c.Deadline.Before(now):
				stats.Overdue++
			case !c.Deadline.After(horizon):
				stats.UpcomingDeadline++
			}
		}
		return nil
	})
	return stats, err
}

type actionRepo struct{ b *binding }

func (r *actionRepo) Create(_ context.Context, action *domain.CaseAction) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.cases[action.CaseID]; !ok {
			return fmt.Errorf("case_actions: unknown case %s", action.CaseID)
		}
		action.ID = newID()
		action.CreatedAt = r.b.now()
		st.actions = append(st.actions, *action)
		return nil
	})
}

func (r *actionRepo) ListByCase(_ context.Context, caseID string) ([]domain.CaseAction, error) {
	var out []domain.CaseAction
	err := r.b.do(func(st *state) error {
		for _, action := range st.actions {
			if action.CaseID == caseID {
				out = append(out, action)
			}
		}
		return nil
	})
	return out, err
}

func (r *actionRepo) CountByCase(ctx context.Context, caseID string) (int, error) {
	actions, err := r.ListByCase(ctx, caseID)
	return len(actions), err
}
