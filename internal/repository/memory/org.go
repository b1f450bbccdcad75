package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dof-service/internal/domain"
)

type userRepo struct{ b *binding }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	return r.b.do(func(st *state) error {
		email := strings.ToLower(strings.TrimSpace(user.Email))
		for _, existing := range st.users {
			if existing.Email == email {
				return fmt.Errorf("users: duplicate email %q", email)
			}
		}
		if user.ID == "" {
			user.ID = newID()
		}
		now := r.b.now()
		user.Email = email
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	return r.b.do(func(st *state) error {
		current, ok := st.users[user.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
		user.Role = current.Role
		user.CreatedAt = current.CreatedAt
		user.UpdatedAt = r.b.now()
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.b.do(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &user
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out *domain.User
	err := r.b.do(func(st *state) error {
		for _, user := range st.users {
			if user.Email == email {
				u := user
				out = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return out, err
}

func (r *userRepo) FindUsersByRole(_ context.Context, roles ...domain.Role) ([]domain.User, error) {
	var out []domain.User
	err := r.b.do(func(st *state) error {
		for _, user := range st.users {
			if !user.Active {
				continue
			}
			for _, role := range roles {
				if user.Role == role {
					out = append(out, user)
					break
				}
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func (r *userRepo) FindActiveUsersByDepartment(_ context.Context, departmentID string) ([]domain.User, error) {
	var out []domain.User
	err := r.b.do(func(st *state) error {
		for _, user := range st.users {
			if user.Active && user.DepartmentID != nil && *user.DepartmentID == departmentID {
				out = append(out, user)
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
}

type departmentRepo struct{ b *binding }

func (r *departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	return r.b.do(func(st *state) error {
		if dept.ID == "" {
			dept.ID = newID()
		}
		now := r.b.now()
		dept.CreatedAt, dept.UpdatedAt = now, now
		st.departments[dept.ID] = *dept
		return nil
	})
}

func (r *departmentRepo) Update(_ context.Context, dept *domain.Department) error {
	return r.b.do(func(st *state) error {
		current, ok := st.departments[dept.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		dept.CreatedAt = current.CreatedAt
		dept.UpdatedAt = r.b.now()
		st.departments[dept.ID] = *dept
		return nil
	})
}

func (r *departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	var out *domain.Department
	err := r.b.do(func(st *state) error {
		dept, ok := st.departments[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &dept
		return nil
	})
	return out, err
}

func (r *departmentRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Department, error) {
	return r.filter(func(st *state, dept domain.Department) bool {
		for _, id := range ids {
			if dept.ID == id {
				return true
			}
		}
		return false
	})
}

func (r *departmentRepo) ListActive(_ context.Context) ([]domain.Department, error) {
	return r.filter(func(_ *state, dept domain.Department) bool { return dept.IsActive })
}

func (r *departmentRepo) FindDepartmentsByManagerID(_ context.Context, managerID string) ([]domain.Department, error) {
	return r.filter(func(_ *state, dept domain.Department) bool {
		return dept.ManagerID != nil && *dept.ManagerID == managerID
	})
}

func (r *departmentRepo) ListByGroupIDs(_ context.Context, groupIDs []string) ([]domain.Department, error) {
	return r.filter(func(_ *state, dept domain.Department) bool {
		if dept.GroupID == nil {
			return false
		}
		for _, id := range groupIDs {
			if *dept.GroupID == id {
				return true
			}
		}
		return false
	})
}

func (r *departmentRepo) filter(keep func(*state, domain.Department) bool) ([]domain.Department, error) {
	var out []domain.Department
	err := r.b.do(func(st *state) error {
		for _, dept := range st.departments {
			if keep(st, dept) {
				out = append(out, dept)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

type groupRepo struct{ b *binding }

func (r *groupRepo) Create(_ context.Context, group *domain.DepartmentGroup) error {
	return r.b.do(func(st *state) error {
		if group.ID == "" {
			group.ID = newID()
		}
		now := r.b.now()
		group.CreatedAt, group.UpdatedAt = now, now
		st.groups[group.ID] = *group
		return nil
	})
}

func (r *groupRepo) Update(_ context.Context, group *domain.DepartmentGroup) error {
	return r.b.do(func(st *state) error {
		current, ok := st.groups[group.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		group.CreatedAt = current.CreatedAt
		group.UpdatedAt = r.b.now()
		st.groups[group.ID] = *group
		return nil
	})
}

func (r *groupRepo) GetByID(_ context.Context, id string) (*domain.DepartmentGroup, error) {
	var out *domain.DepartmentGroup
	err := r.b.do(func(st *state) error {
		group, ok := st.groups[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &group
		return nil
	})
	return out, err
}

func (r *groupRepo) ListByManager(_ context.Context, managerID string) ([]domain.DepartmentGroup, error) {
	var out []domain.DepartmentGroup
	err := r.b.do(func(st *state) error {
		for _, group := range st.groups {
			if group.ManagerID != nil && *group.ManagerID == managerID {
				out = append(out, group)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *groupRepo) AddDepartment(_ context.Context, groupID, departmentID string) error {
	return r.b.do(func(st *state) error {
		set, ok := st.groupDepartments[groupID]
		if !ok {
			set = map[string]struct{}{}
			st.groupDepartments[groupID] = set
		}
		set[departmentID] = struct{}{}
		return nil
	})
}

func (r *groupRepo) ListAssociatedDepartmentIDs(_ context.Context, groupIDs []string) ([]string, error) {
	var out []string
	err := r.b.do(func(st *state) error {
		for _, groupID := range groupIDs {
			for deptID := range st.groupDepartments[groupID] {
				out = append(out, deptID)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

type mappingRepo struct{ b *binding }

func (r *mappingRepo) ListDepartmentIDsByUser(_ context.Context, userID string) ([]string, error) {
	return r.keys(func(st *state) map[string]timeSet { return st.userDepartments }, userID)
}

func (r *mappingRepo) ReplaceUserDepartments(_ context.Context, userID string, departmentIDs []string) error {
	return r.b.do(func(st *state) error {
		st.userDepartments[userID] = r.fresh(departmentIDs)
		return nil
	})
}

func (r *mappingRepo) ListManagerIDsByDirector(_ context.Context, directorID string) ([]string, error) {
	return r.keys(func(st *state) map[string]timeSet { return st.directorManagers }, directorID)
}

func (r *mappingRepo) ReplaceDirectorManagers(_ context.Context, directorID string, managerIDs []string) error {
	return r.b.do(func(st *state) error {
		st.directorManagers[directorID] = r.fresh(managerIDs)
		return nil
	})
}

func (r *mappingRepo) fresh(ids []string) timeSet {
	now := r.b.now()
	set := make(timeSet, len(ids))
	for _, id := range ids {
		set[id] = now
	}
	return set
}

func (r *mappingRepo) keys(table func(*state) map[string]timeSet, owner string) ([]string, error) {
	var out []string
	err := r.b.do(func(st *state) error {
		for id := range table(st)[owner] {
			out = append(out, id)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
