package repository

import (
	"context"
)

// OrgMappingRepository stores the user↔department and director↔manager association tables.
type OrgMappingRepository interface {
	ListDepartmentIDsByUser(ctx context.Context, userID string) ([]string, error)
	// ReplaceUserDepartments swaps the user's mapping rows for exactly departmentIDs.
	ReplaceUserDepartments(ctx context.Context, userID string, departmentIDs []string) error
	ListManagerIDsByDirector(ctx context.Context, directorID string) ([]string, error)
	// ReplaceDirectorManagers swaps the director's mapping rows for exactly managerIDs.
	ReplaceDirectorManagers(ctx context.Context, directorID string, managerIDs []string) error
}

type orgMappingRepository struct {
	db DBTX
}

// NewOrgMappingRepository builds repository.
func NewOrgMappingRepository(db DBTX) OrgMappingRepository {
	return &orgMappingRepository{db: db}
}

func (r *orgMappingRepository) ListDepartmentIDsByUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT department_id FROM user_departments WHERE user_id=$1`
	return queryIDs(ctx, r.db, query, userID)
}

func (r *orgMappingRepository) ReplaceUserDepartments(ctx context.Context, userID string, departmentIDs []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_departments WHERE user_id=$1`, userID); err != nil {
		return err
	}
	if len(departmentIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO user_departments (user_id, department_id)
        SELECT $1, unnest($2::uuid[])
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID, departmentIDs)
	return err
}

func (r *orgMappingRepository) ListManagerIDsByDirector(ctx context.Context, directorID string) ([]string, error) {
	const query = `SELECT manager_id FROM director_managers WHERE director_id=$1`
	return queryIDs(ctx, r.db, query, directorID)
}

func (r *orgMappingRepository) ReplaceDirectorManagers(ctx context.Context, directorID string, managerIDs []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM director_managers WHERE director_id=$1`, directorID); err != nil {
		return err
	}
	if len(managerIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO director_managers (director_id, manager_id)
        SELECT $1, unnest($2::uuid[])
        ON CONFLICT (director_id, manager_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, directorID, managerIDs)
	return err
}
