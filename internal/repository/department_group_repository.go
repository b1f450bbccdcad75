package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// DepartmentGroupRepository manages groups and the group↔department association table.
type DepartmentGroupRepository interface {
	Create(ctx context.Context, group *domain.DepartmentGroup) error
	Update(ctx context.Context, group *domain.DepartmentGroup) error
	GetByID(ctx context.Context, id string) (*domain.DepartmentGroup, error)
	ListByManager(ctx context.Context, managerID string) ([]domain.DepartmentGroup, error)
	AddDepartment(ctx context.Context, groupID, departmentID string) error
	// ListAssociatedDepartmentIDs returns department ids linked to groupIDs through the association table.
	ListAssociatedDepartmentIDs(ctx context.Context, groupIDs []string) ([]string, error)
}

type departmentGroupRepository struct {
	db DBTX
}

// NewDepartmentGroupRepository constructs repository.
func NewDepartmentGroupRepository(db DBTX) DepartmentGroupRepository {
	return &departmentGroupRepository{db: db}
}

func (r *departmentGroupRepository) Create(ctx context.Context, group *domain.DepartmentGroup) error {
	const query = `
        INSERT INTO department_groups (name, manager_id)
        VALUES ($1,$2)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, group.Name, group.ManagerID).Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
}

func (r *departmentGroupRepository) Update(ctx context.Context, group *domain.DepartmentGroup) error {
	const query = `
        UPDATE department_groups SET name=$1, manager_id=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, group.Name, group.ManagerID, group.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentGroupRepository) GetByID(ctx context.Context, id string) (*domain.DepartmentGroup, error) {
	const query = `
        SELECT id, name, manager_id, created_at, updated_at
        FROM department_groups WHERE id=$1`
	var group domain.DepartmentGroup
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.ManagerID,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *departmentGroupRepository) ListByManager(ctx context.Context, managerID string) ([]domain.DepartmentGroup, error) {
	const query = `
        SELECT id, name, manager_id, created_at, updated_at
        FROM department_groups WHERE manager_id=$1`
	rows, err := r.db.Query(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DepartmentGroup
	for rows.Next() {
		var group domain.DepartmentGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.ManagerID, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}

func (r *departmentGroupRepository) AddDepartment(ctx context.Context, groupID, departmentID string) error {
	const query = `
        INSERT INTO group_departments (group_id, department_id)
        VALUES ($1,$2)
        ON CONFLICT (group_id, department_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, groupID, departmentID)
	return err
}

func (r *departmentGroupRepository) ListAssociatedDepartmentIDs(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT department_id FROM group_departments WHERE group_id = ANY($1)`
	return queryIDs(ctx, r.db, query, groupIDs)
}

func queryIDs(ctx context.Context, db DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
