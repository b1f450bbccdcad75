package domain

import "time"

// Role is the business classification of a user. It never changes after provisioning.
type Role string

const (
	RoleAdmin                      Role = "ADMIN"
	RoleQualityManager             Role = "QUALITY_MANAGER"
	RoleGroupManager               Role = "GROUP_MANAGER"
	RoleDepartmentManager          Role = "DEPARTMENT_MANAGER"
	RoleRegularUser                Role = "REGULAR_USER"
	RoleDirector                   Role = "DIRECTOR"
	RoleFranchiseDepartmentManager Role = "FRANCHISE_DEPARTMENT_MANAGER"
	RoleProjectsQualityTracker     Role = "PROJECTS_QUALITY_TRACKER"
	RoleBranchesQualityTracker     Role = "BRANCHES_QUALITY_TRACKER"
)

// AllRoles lists the closed role set.
var AllRoles = []Role{
	RoleAdmin,
	RoleQualityManager,
	RoleGroupManager,
	RoleDepartmentManager,
	RoleRegularUser,
	RoleDirector,
	RoleFranchiseDepartmentManager,
	RoleProjectsQualityTracker,
	RoleBranchesQualityTracker,
}

// GroupManagerRoles are the roles that manage several departments at once.
var GroupManagerRoles = []Role{RoleGroupManager, RoleProjectsQualityTracker, RoleBranchesQualityTracker}

// DepartmentManagerRoles own exactly one department as manager of record.
var DepartmentManagerRoles = []Role{RoleDepartmentManager, RoleFranchiseDepartmentManager}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	for _, candidate := range AllRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsGroupManagerFamily reports whether r resolves departments through groups and mappings.
func (r Role) IsGroupManagerFamily() bool {
	return r == RoleGroupManager || r == RoleProjectsQualityTracker || r == RoleBranchesQualityTracker
}

// IsDepartmentManagerFamily reports whether r manages a single department.
func (r Role) IsDepartmentManagerFamily() bool {
	return r == RoleDepartmentManager || r == RoleFranchiseDepartmentManager
}

// CanOwnDepartment reports whether r may be set as a department's manager of
// record. Group managers resolve through groups, so they never qualify.
func (r Role) CanOwnDepartment() bool {
	return r.IsDepartmentManagerFamily()
}

// CanReportToDirector reports whether r may appear in a director's manager list.
func (r Role) CanReportToDirector() bool {
	return r.IsDepartmentManagerFamily() || r.IsGroupManagerFamily()
}

// User is a provisioned member of the organization.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
