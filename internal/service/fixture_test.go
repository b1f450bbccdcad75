package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
	"github.com/spec-kit/dof-service/internal/repository/memory"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// orgFixture seeds an organization into an in-memory store.
type orgFixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	repos repository.Repositories
}

func newOrgFixture(t *testing.T) *orgFixture {
	t.Helper()
	store := memory.NewStore()
	return &orgFixture{t: t, ctx: context.Background(), store: store, repos: store.Repos()}
}

func (f *orgFixture) user(name string, role domain.Role, home *domain.Department) *domain.User {
	f.t.Helper()
	u := &domain.User{Name: name, Email: name + "@example.com", Role: role, Active: true}
	if home != nil {
		u.DepartmentID = strPtr(home.ID)
	}
	if err := f.repos.Users.Create(f.ctx, u); err != nil {
		f.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *orgFixture) department(name string, manager *domain.User) *domain.Department {
	f.t.Helper()
	d := &domain.Department{Name: name, IsActive: true}
	if manager != nil {
		d.ManagerID = strPtr(manager.ID)
	}
	if err := f.repos.Departments.Create(f.ctx, d); err != nil {
		f.t.Fatalf("create department %s: %v", name, err)
	}
	return d
}

func (f *orgFixture) deactivate(d *domain.Department) {
	f.t.Helper()
	d.IsActive = false
	if err := f.repos.Departments.Update(f.ctx, d); err != nil {
		f.t.Fatalf("deactivate %s: %v", d.Name, err)
	}
}

// group creates a group managed by manager. direct departments point at the
// group through their group reference; associated ones through the link table.
func (f *orgFixture) group(name string, manager *domain.User, direct []*domain.Department, associated []*domain.Department) *domain.DepartmentGroup {
	f.t.Helper()
	g := &domain.DepartmentGroup{Name: name}
	if manager != nil {
		g.ManagerID = strPtr(manager.ID)
	}
	if err := f.repos.Groups.Create(f.ctx, g); err != nil {
		f.t.Fatalf("create group %s: %v", name, err)
	}
	for _, d := range direct {
		d.GroupID = strPtr(g.ID)
		if err := f.repos.Departments.Update(f.ctx, d); err != nil {
			f.t.Fatalf("link %s: %v", d.Name, err)
		}
	}
	for _, d := range associated {
		if err := f.repos.Groups.AddDepartment(f.ctx, g.ID, d.ID); err != nil {
			f.t.Fatalf("associate %s: %v", d.Name, err)
		}
	}
	return g
}

func (f *orgFixture) mapDepartments(u *domain.User, ids ...string) {
	f.t.Helper()
	if err := f.repos.Mappings.ReplaceUserDepartments(f.ctx, u.ID, ids); err != nil {
		f.t.Fatalf("map departments: %v", err)
	}
}

func (f *orgFixture) mapManagers(director *domain.User, managers ...*domain.User) {
	f.t.Helper()
	ids := make([]string, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	if err := f.repos.Mappings.ReplaceDirectorManagers(f.ctx, director.ID, ids); err != nil {
		f.t.Fatalf("map managers: %v", err)
	}
}

func (f *orgFixture) resolve(u *domain.User) DepartmentSet {
	f.t.Helper()
	set, err := NewOrgResolver(f.repos).ResolveManagedDepartments(f.ctx, u)
	if err != nil {
		f.t.Fatalf("resolve %s: %v", u.Name, err)
	}
	return set
}

func (f *orgFixture) unread(u *domain.User) []domain.Notification {
	f.t.Helper()
	list, err := f.repos.Notifications.ListByUser(f.ctx, u.ID, true, 100, 0)
	if err != nil {
		f.t.Fatalf("list notifications: %v", err)
	}
	return list
}

func setOf(depts ...*domain.Department) DepartmentSet {
	set := DepartmentSet{}
	for _, d := range depts {
		set.add(d.ID)
	}
	return set
}

func sameSet(a, b DepartmentSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.Has(id) {
			return false
		}
	}
	return true
}

func strPtr(s string) *string { return &s }

func errCode(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
