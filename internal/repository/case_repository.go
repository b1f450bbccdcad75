package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// CaseFilter captures listing parameters.
type CaseFilter struct {
	// Unrestricted lists every case and ignores the visibility fields below.
	Unrestricted bool
	// VisibleTo limits results to cases created by or assigned to this user,
	// or owned by one of DepartmentIDs.
	VisibleTo     string
	DepartmentIDs []string
	Statuses      []domain.CaseStatus
	Limit         int
	Offset        int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	// GetForUpdate loads the case and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	// Statistics counts cases owned by departmentIDs relative to now.
	Statistics(ctx context.Context, departmentIDs []string, now time.Time) (domain.CaseStatistics, error)
}

type caseRepository struct {
	db DBTX
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(db DBTX) CaseRepository {
	return &caseRepository{db: db}
}

const caseColumns = `id, code, title, description, case_type, source, status, department_id, source_department_id,
               creator_id, assignee_id, root_cause, action_plan, plan_locked, reject_reason, deadline,
               completed_at, closed_at, reopen_count, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (code, title, description, case_type, source, status, department_id, source_department_id,
            creator_id, assignee_id, root_cause, action_plan, plan_locked, reject_reason, deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		c.Code,
		c.Title,
		c.Description,
		c.CaseType,
		c.Source,
		int(c.Status),
		c.DepartmentID,
		c.SourceDepartmentID,
		c.CreatorID,
		c.AssigneeID,
		c.RootCause,
		c.ActionPlan,
		c.PlanLocked,
		c.RejectReason,
		c.Deadline,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET title=$1, description=$2, status=$3, department_id=$4, assignee_id=$5,
            root_cause=$6, action_plan=$7, plan_locked=$8, reject_reason=$9, deadline=$10,
            completed_at=$11, closed_at=$12, reopen_count=$13, updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		c.Title,
		c.Description,
		int(c.Status),
		c.DepartmentID,
		c.AssigneeID,
		c.RootCause,
		c.ActionPlan,
		c.PlanLocked,
		c.RejectReason,
		c.Deadline,
		c.CompletedAt,
		c.ClosedAt,
		c.ReopenCount,
		c.ID,
	).Scan(&c.UpdatedAt)
	return err
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return scanCase(r.db.QueryRow(ctx, query, id))
}

func (r *caseRepository) GetForUpdate(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1 FOR UPDATE`
	return scanCase(r.db.QueryRow(ctx, query, id))
}

func (r *caseRepository) List(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.Unrestricted {
		args = append(args, filter.VisibleTo)
		userParam := fmt.Sprintf("$%d", len(args))
		visibility := []string{
			"creator_id=" + userParam,
			"assignee_id=" + userParam,
		}
		if len(filter.DepartmentIDs) > 0 {
			args = append(args, filter.DepartmentIDs)
			visibility = append(visibility, fmt.Sprintf("department_id = ANY($%d)", len(args)))
		}
		clauses = append(clauses, "("+strings.Join(visibility, " OR ")+")")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, int(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM cases WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		caseColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *caseRepository) Statistics(ctx context.Context, departmentIDs []string, now time.Time) (domain.CaseStatistics, error) {
	var stats domain.CaseStatistics
	if len(departmentIDs) == 0 {
		return stats, nil
	}
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE status NOT IN ($2,$3)),
            COUNT(*) FILTER (WHERE status = $2 AND closed_at >= $5),
            COUNT(*) FILTER (WHERE status NOT IN ($2,$3) AND deadline >= $4 AND deadline <= $6),
            COUNT(*) FILTER (WHERE status NOT IN ($2,$3) AND deadline < $4)
        FROM cases
        WHERE department_id = ANY($1)`
	err := r.db.QueryRow(ctx, query,
		departmentIDs,
		int(domain.CaseStatusClosed),
		int(domain.CaseStatusRejected),
		now,
		StartOfWeek(now),
		now.Add(UpcomingDeadlineWindow),
	).Scan(&stats.Open, &stats.ClosedThisWeek, &stats.UpcomingDeadline, &stats.Overdue)
	return stats, err
}

// UpcomingDeadlineWindow is how far ahead a deadline counts as upcoming.
const UpcomingDeadlineWindow = 7 * 24 * time.Hour

// StartOfWeek returns Monday 00:00 of the week containing t, in t's location.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var (
		c      domain.Case
		status int
	)
	if err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Title,
		&c.Description,
		&c.CaseType,
		&c.Source,
		&status,
		&c.DepartmentID,
		&c.SourceDepartmentID,
		&c.CreatorID,
		&c.AssigneeID,
		&c.RootCause,
		&c.ActionPlan,
		&c.PlanLocked,
		&c.RejectReason,
		&c.Deadline,
		&c.CompletedAt,
		&c.ClosedAt,
		&c.ReopenCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = domain.CaseStatus(status)
	return &c, nil
}
