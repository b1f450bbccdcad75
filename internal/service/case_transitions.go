package service

import (
	"sort"

	"github.com/spec-kit/dof-service/internal/domain"
)

// transitionRule gates one edge of the case lifecycle.
type transitionRule struct {
	// roles may take the edge. Admin passes every role gate except creatorOnly.
	roles []domain.Role
	// creatorOnly restricts the edge to the case creator.
	creatorOnly bool
	// creatorAllowed admits the creator in addition to roles.
	creatorAllowed bool
	// scope names the department the actor must be able to manage.
	scope departmentScope
}

type departmentScope int

const (
	scopeNone departmentScope = iota
	// scopeCase checks the department the case will belong to after the move.
	scopeCase
	// scopeSource checks the department the case was raised from.
	scopeSource
)

var qualityRoles = []domain.Role{domain.RoleQualityManager}

// departmentManagerRoles are the roles that act as "the assignee's department manager".
var departmentManagerRoles = []domain.Role{
	domain.RoleDepartmentManager,
	domain.RoleFranchiseDepartmentManager,
	domain.RoleGroupManager,
	domain.RoleProjectsQualityTracker,
	domain.RoleBranchesQualityTracker,
}

// allowedTransitions is the complete edge set. Legacy and terminal statuses
// have no outgoing edges and never appear as targets.
var allowedTransitions = map[domain.CaseStatus]map[domain.CaseStatus]transitionRule{
	domain.CaseStatusDraft: {
		domain.CaseStatusSubmitted: {creatorOnly: true},
	},
	domain.CaseStatusSubmitted: {
		domain.CaseStatusInReview: {roles: qualityRoles},
	},
	domain.CaseStatusInReview: {
		domain.CaseStatusAssigned: {roles: qualityRoles, scope: scopeCase},
		domain.CaseStatusRejected: {roles: qualityRoles},
	},
	domain.CaseStatusAssigned: {
		domain.CaseStatusPlanning: {roles: departmentManagerRoles, scope: scopeCase},
	},
	domain.CaseStatusPlanning: {
		domain.CaseStatusImplementation: {roles: qualityRoles, scope: scopeCase},
		domain.CaseStatusAssigned:       {roles: qualityRoles, scope: scopeCase},
	},
	domain.CaseStatusImplementation: {
		domain.CaseStatusCompleted: {roles: departmentManagerRoles, scope: scopeCase},
	},
	domain.CaseStatusCompleted: {
		domain.CaseStatusSourceReview: {roles: departmentManagerRoles, creatorAllowed: true, scope: scopeSource},
	},
	domain.CaseStatusSourceReview: {
		domain.CaseStatusClosed:   {roles: qualityRoles},
		domain.CaseStatusAssigned: {roles: qualityRoles, scope: scopeCase},
	},
}

func lookupTransition(from, to domain.CaseStatus) (transitionRule, bool) {
	edges, ok := allowedTransitions[from]
	if !ok {
		return transitionRule{}, false
	}
	rule, ok := edges[to]
	return rule, ok
}

// NextStatuses lists the statuses reachable from s in ascending order.
func NextStatuses(s domain.CaseStatus) []domain.CaseStatus {
	out := make([]domain.CaseStatus, 0, len(allowedTransitions[s]))
	for to := range allowedTransitions[s] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r transitionRule) roleAllowed(role domain.Role) bool {
	for _, candidate := range r.roles {
		if candidate == role {
			return true
		}
	}
	return false
}
