package service

import (
	"errors"
	"testing"

	"github.com/spec-kit/dof-service/internal/domain"
)

func TestCanManageAdminAndRegularUser(t *testing.T) {
	f := newOrgFixture(t)
	admin := f.user("admin", domain.RoleAdmin, nil)
	regular := f.user("regular", domain.RoleRegularUser, nil)
	kanyon := f.department("Kanyon", nil)
	archived := f.department("Archived", nil)
	f.deactivate(archived)

	resolver := NewOrgResolver(f.repos)
	for _, deptID := range []string{kanyon.ID, archived.ID, "missing"} {
		ok, err := resolver.CanManage(f.ctx, admin, deptID)
		if err != nil || !ok {
			t.Fatalf("admin on %s = %v, %v; want true", deptID, ok, err)
		}
		ok, err = resolver.CanManage(f.ctx, regular, deptID)
		if err != nil || ok {
			t.Fatalf("regular user on %s = %v, %v; want false", deptID, ok, err)
		}
	}
}

func TestResolveByRole(t *testing.T) {
	f := newOrgFixture(t)
	dm := f.user("dm", domain.RoleDepartmentManager, nil)
	fdm := f.user("fdm", domain.RoleFranchiseDepartmentManager, nil)
	gm := f.user("gm", domain.RoleGroupManager, nil)
	pqt := f.user("pqt", domain.RoleProjectsQualityTracker, nil)

	kanyon := f.department("Kanyon", dm)
	levent := f.department("Levent", nil)
	bursa := f.department("Bursa", fdm)
	izmir := f.department("Izmir", nil)
	closed := f.department("Closed", dm)
	f.deactivate(closed)

	f.group("Istanbul", gm, []*domain.Department{kanyon}, []*domain.Department{levent})
	f.mapDepartments(pqt, izmir.ID, closed.ID)

	admin := f.user("admin", domain.RoleAdmin, nil)
	qm := f.user("qm", domain.RoleQualityManager, nil)
	regular := f.user("regular", domain.RoleRegularUser, kanyon)
	lonelyDirector := f.user("director", domain.RoleDirector, nil)

	all := setOf(kanyon, levent, bursa, izmir)
	cases := []struct {
		name string
		user *domain.User
		want DepartmentSet
	}{
		{name: "admin sees every active department", user: admin, want: all},
		{name: "quality manager sees every active department", user: qm, want: all},
		{name: "department manager by record, inactive dropped", user: dm, want: setOf(kanyon)},
		{name: "franchise manager by record", user: fdm, want: setOf(bursa)},
		{name: "group manager through both group paths", user: gm, want: setOf(kanyon, levent)},
		{name: "tracker through mapping rows, inactive dropped", user: pqt, want: setOf(izmir)},
		{name: "regular user", user: regular, want: DepartmentSet{}},
		{name: "director without mappings", user: lonelyDirector, want: DepartmentSet{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := f.resolve(tc.user)
			if !sameSet(got, tc.want) {
				t.Fatalf("got %v, want %v", got.IDs(), tc.want.IDs())
			}
		})
	}
}

func TestDepartmentManagerPrimaryDepartmentGrantsNothing(t *testing.T) {
	f := newOrgFixture(t)
	kanyon := f.department("Kanyon", nil)
	dm := f.user("dm", domain.RoleDepartmentManager, kanyon)

	if got := f.resolve(dm); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got.IDs())
	}
	ok, err := NewOrgResolver(f.repos).CanManage(f.ctx, dm, kanyon.ID)
	if err != nil || ok {
		t.Fatalf("CanManage = %v, %v; want false", ok, err)
	}
}

func TestDirectorIsUnionOfManagers(t *testing.T) {
	f := newOrgFixture(t)
	dm := f.user("dm", domain.RoleDepartmentManager, nil)
	gm := f.user("gm", domain.RoleGroupManager, nil)
	otherDirector := f.user("other-director", domain.RoleDirector, nil)
	director := f.user("director", domain.RoleDirector, nil)

	kanyon := f.department("Kanyon", dm)
	levent := f.department("Levent", nil)
	bursa := f.department("Bursa", nil)
	f.group("Istanbul", gm, []*domain.Department{levent}, []*domain.Department{kanyon})
	otherManager := f.user("other-dm", domain.RoleDepartmentManager, nil)
	f.department("Izmir", otherManager)
	f.mapManagers(otherDirector, otherManager)

	// a director listed as a manager contributes nothing: expansion stops after one hop
	f.mapManagers(director, dm, gm, otherDirector)

	want := DepartmentSet{}
	for _, m := range []*domain.User{dm, gm} {
		for id := range f.resolve(m) {
			want.add(id)
		}
	}
	got := f.resolve(director)
	if !sameSet(got, want) {
		t.Fatalf("director resolved %v, want union %v", got.IDs(), want.IDs())
	}
	if !sameSet(got, setOf(kanyon, levent)) {
		t.Fatalf("unexpected union %v", got.IDs())
	}

	resolver := NewOrgResolver(f.repos)
	ok, err := resolver.CanManage(f.ctx, director, kanyon.ID)
	if err != nil || !ok {
		t.Fatalf("director CanManage kanyon = %v, %v", ok, err)
	}
	ok, err = resolver.CanManage(f.ctx, director, bursa.ID)
	if err != nil || ok {
		t.Fatalf("director CanManage bursa = %v, %v", ok, err)
	}
}

func TestResolveIsIdempotentAndDeduplicated(t *testing.T) {
	f := newOrgFixture(t)
	gm := f.user("gm", domain.RoleGroupManager, nil)
	kanyon := f.department("Kanyon", nil)
	// reachable via the group reference, the link table and a mapping row
	f.group("Istanbul", gm, []*domain.Department{kanyon}, []*domain.Department{kanyon})
	f.mapDepartments(gm, kanyon.ID)

	first := f.resolve(gm)
	second := f.resolve(gm)
	if len(first.IDs()) != 1 || !sameSet(first, second) {
		t.Fatalf("first %v, second %v", first.IDs(), second.IDs())
	}
}

func TestDanglingReferencesAreSkipped(t *testing.T) {
	f := newOrgFixture(t)
	gm := f.user("gm", domain.RoleGroupManager, nil)
	director := f.user("director", domain.RoleDirector, nil)
	kanyon := f.department("Kanyon", nil)
	f.mapDepartments(gm, kanyon.ID, "ghost-department")
	if err := f.repos.Mappings.ReplaceDirectorManagers(f.ctx, director.ID, []string{gm.ID, "ghost-manager"}); err != nil {
		t.Fatalf("map managers: %v", err)
	}

	if got := f.resolve(gm); !sameSet(got, setOf(kanyon)) {
		t.Fatalf("gm resolved %v", got.IDs())
	}
	if got := f.resolve(director); !sameSet(got, setOf(kanyon)) {
		t.Fatalf("director resolved %v", got.IDs())
	}
}

func TestResolveNilUser(t *testing.T) {
	f := newOrgFixture(t)
	resolver := NewOrgResolver(f.repos)
	if _, err := resolver.ResolveManagedDepartments(f.ctx, nil); !errors.Is(err, domain.ErrNilUser) {
		t.Fatalf("expected ErrNilUser, got %v", err)
	}
	if _, err := resolver.CanManage(f.ctx, nil, "x"); !errors.Is(err, domain.ErrNilUser) {
		t.Fatalf("expected ErrNilUser, got %v", err)
	}
}
