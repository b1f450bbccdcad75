package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	// GetByIDs returns the departments that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
	FindDepartmentsByManagerID(ctx context.Context, managerID string) ([]domain.Department, error)
	// ListByGroupIDs returns departments whose group reference is one of groupIDs.
	ListByGroupIDs(ctx context.Context, groupIDs []string) ([]domain.Department, error)
}

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

const departmentColumns = `id, name, manager_id, group_id, is_active, created_at, updated_at`

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (name, manager_id, group_id, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		dept.Name,
		dept.ManagerID,
		dept.GroupID,
		dept.IsActive,
	).Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	const query = `
        UPDATE departments SET name=$1, manager_id=$2, group_id=$3, is_active=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query,
		dept.Name,
		dept.ManagerID,
		dept.GroupID,
		dept.IsActive,
		dept.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.ManagerID,
		&dept.GroupID,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Department, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = ANY($1)`
	return r.list(ctx, query, ids)
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE is_active = TRUE ORDER BY name`
	return r.list(ctx, query)
}

func (r *departmentRepository) FindDepartmentsByManagerID(ctx context.Context, managerID string) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE manager_id=$1`
	return r.list(ctx, query, managerID)
}

func (r *departmentRepository) ListByGroupIDs(ctx context.Context, groupIDs []string) ([]domain.Department, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE group_id = ANY($1)`
	return r.list(ctx, query, groupIDs)
}

func (r *departmentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Department, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.ManagerID, &dept.GroupID, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}
