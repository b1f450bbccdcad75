package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// CaseActionRepository persists the append-only case audit trail. It exposes no update or delete.
type CaseActionRepository interface {
	Create(ctx context.Context, action *domain.CaseAction) error
	ListByCase(ctx context.Context, caseID string) ([]domain.CaseAction, error)
	CountByCase(ctx context.Context, caseID string) (int, error)
}

type caseActionRepository struct {
	db DBTX
}

// NewCaseActionRepository constructs repository.
func NewCaseActionRepository(db DBTX) CaseActionRepository {
	return &caseActionRepository{db: db}
}

func (r *caseActionRepository) Create(ctx context.Context, action *domain.CaseAction) error {
	const query = `
        INSERT INTO case_actions (case_id, actor_id, old_status, new_status, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		action.CaseID,
		action.ActorID,
		statusParam(action.OldStatus),
		statusParam(action.NewStatus),
		action.Comment,
	).Scan(&action.ID, &action.CreatedAt)
}

func (r *caseActionRepository) ListByCase(ctx context.Context, caseID string) ([]domain.CaseAction, error) {
	const query = `
        SELECT id, case_id, actor_id, old_status, new_status, comment, created_at
        FROM case_actions WHERE case_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CaseAction
	for rows.Next() {
		action, err := scanCaseAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *action)
	}
	return result, rows.Err()
}

func (r *caseActionRepository) CountByCase(ctx context.Context, caseID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM case_actions WHERE case_id=$1`, caseID).Scan(&count)
	return count, err
}

func scanCaseAction(row pgx.Row) (*domain.CaseAction, error) {
	var (
		action   domain.CaseAction
		oldState *int
		newState *int
	)
	if err := row.Scan(
		&action.ID,
		&action.CaseID,
		&action.ActorID,
		&oldState,
		&newState,
		&action.Comment,
		&action.CreatedAt,
	); err != nil {
		return nil, err
	}
	action.OldStatus = statusFromParam(oldState)
	action.NewStatus = statusFromParam(newState)
	return &action, nil
}

func statusParam(status *domain.CaseStatus) *int {
	if status == nil {
		return nil
	}
	v := int(*status)
	return &v
}

func statusFromParam(v *int) *domain.CaseStatus {
	if v == nil {
		return nil
	}
	status := domain.CaseStatus(*v)
	return &status
}
