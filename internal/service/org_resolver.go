package service

import (
	"context"
	"sort"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// DepartmentSet is a deduplicated set of department ids.
type DepartmentSet map[string]struct{}

// Has reports membership.
func (s DepartmentSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in sorted order.
func (s DepartmentSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s DepartmentSet) add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
}

// OrgResolver answers which departments a user may see and manage. It reads
// through whatever repositories it is given, so a resolver built from a
// transaction sees that transaction's writes.
type OrgResolver struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	groups      repository.DepartmentGroupRepository
	mappings    repository.OrgMappingRepository
}

// NewOrgResolver builds a resolver over repos.
func NewOrgResolver(repos repository.Repositories) *OrgResolver {
	return &OrgResolver{
		users:       repos.Users,
		departments: repos.Departments,
		groups:      repos.Groups,
		mappings:    repos.Mappings,
	}
}

// ResolveManagedDepartments returns the active departments user may view or
// manage. Dangling references are skipped; only a nil user is an error.
func (r *OrgResolver) ResolveManagedDepartments(ctx context.Context, user *domain.User) (DepartmentSet, error) {
	if user == nil {
		return nil, domain.ErrNilUser
	}
	return r.resolve(ctx, user, true)
}

// CanManage reports whether user has management authority over departmentID.
// Admin and QualityManager short-circuit without resolving any set.
func (r *OrgResolver) CanManage(ctx context.Context, user *domain.User, departmentID string) (bool, error) {
	if user == nil {
		return false, domain.ErrNilUser
	}
	switch {
	case user.Role == domain.RoleAdmin:
		return true, nil
	case user.Role == domain.RoleQualityManager:
		return r.qualityCanManage(), nil
	case user.Role.IsDepartmentManagerFamily():
		return r.isManagerOfRecord(ctx, user.ID, departmentID)
	case user.Role.IsGroupManagerFamily(), user.Role == domain.RoleDirector:
		set, err := r.resolve(ctx, user, true)
		if err != nil {
			return false, err
		}
		return set.Has(departmentID), nil
	default:
		return false, nil
	}
}

// resolve dispatches on role. followDirectors is false on the second hop so
// director expansion never recurses past one level.
func (r *OrgResolver) resolve(ctx context.Context, user *domain.User, followDirectors bool) (DepartmentSet, error) {
	switch {
	case user.Role == domain.RoleAdmin:
		return r.allActive(ctx)
	case user.Role == domain.RoleQualityManager:
		return r.qualityDepartments(ctx)
	case user.Role.IsDepartmentManagerFamily():
		return r.managedByRecord(ctx, user.ID)
	case user.Role.IsGroupManagerFamily():
		return r.groupDepartments(ctx, user.ID)
	case user.Role == domain.RoleDirector:
		if !followDirectors {
			return DepartmentSet{}, nil
		}
		return r.directorDepartments(ctx, user.ID)
	default:
		return DepartmentSet{}, nil
	}
}

func (r *OrgResolver) allActive(ctx context.Context) (DepartmentSet, error) {
	depts, err := r.departments.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	set := DepartmentSet{}
	for _, d := range depts {
		set.add(d.ID)
	}
	return set, nil
}

// qualityDepartments is the reporting scope of quality managers. It is kept
// apart from qualityCanManage so either can be narrowed on its own.
func (r *OrgResolver) qualityDepartments(ctx context.Context) (DepartmentSet, error) {
	return r.allActive(ctx)
}

func (r *OrgResolver) qualityCanManage() bool {
	return true
}

// managedByRecord ignores the user's primary department: only the manager
// reference on the department grants authority.
func (r *OrgResolver) managedByRecord(ctx context.Context, userID string) (DepartmentSet, error) {
	depts, err := r.departments.FindDepartmentsByManagerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := DepartmentSet{}
	for _, d := range depts {
		if d.IsActive {
			set.add(d.ID)
		}
	}
	return set, nil
}

func (r *OrgResolver) isManagerOfRecord(ctx context.Context, userID, departmentID string) (bool, error) {
	dept, err := r.departments.GetByID(ctx, departmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return dept.IsActive && dept.ManagerID != nil && *dept.ManagerID == userID, nil
}

// groupDepartments unions the direct group reference, the association table
// and the user's own mapping rows.
func (r *OrgResolver) groupDepartments(ctx context.Context, userID string) (DepartmentSet, error) {
	candidates := DepartmentSet{}

	groups, err := r.groups.ListByManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		groupIDs := make([]string, 0, len(groups))
		for _, g := range groups {
			groupIDs = append(groupIDs, g.ID)
		}
		direct, err := r.departments.ListByGroupIDs(ctx, groupIDs)
		if err != nil {
			return nil, err
		}
		for _, d := range direct {
			candidates.add(d.ID)
		}
		associated, err := r.groups.ListAssociatedDepartmentIDs(ctx, groupIDs)
		if err != nil {
			return nil, err
		}
		candidates.add(associated...)
	}

	mapped, err := r.mappings.ListDepartmentIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates.add(mapped...)

	return r.activeOnly(ctx, candidates)
}

func (r *OrgResolver) directorDepartments(ctx context.Context, directorID string) (DepartmentSet, error) {
	managerIDs, err := r.mappings.ListManagerIDsByDirector(ctx, directorID)
	if err != nil {
		return nil, err
	}
	set := DepartmentSet{}
	for _, managerID := range managerIDs {
		manager, err := r.users.GetByID(ctx, managerID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		managed, err := r.resolve(ctx, manager, false)
		if err != nil {
			return nil, err
		}
		for id := range managed {
			set.add(id)
		}
	}
	return set, nil
}

// activeOnly drops ids that no longer exist or belong to inactive departments.
func (r *OrgResolver) activeOnly(ctx context.Context, candidates DepartmentSet) (DepartmentSet, error) {
	set := DepartmentSet{}
	if len(candidates) == 0 {
		return set, nil
	}
	depts, err := r.departments.GetByIDs(ctx, candidates.IDs())
	if err != nil {
		return nil, err
	}
	for _, d := range depts {
		if d.IsActive {
			set.add(d.ID)
		}
	}
	return set, nil
}
