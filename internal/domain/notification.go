package domain

import "time"

// EventKind classifies a case event for stakeholder fan-out.
type EventKind string

const (
	EventKindCreated            EventKind = "CREATED"
	EventKindStatusChanged      EventKind = "STATUS_CHANGED"
	EventKindDepartmentAssigned EventKind = "DEPARTMENT_ASSIGNED"
)

// InvolvesDepartment reports whether department stakeholders are part of the fan-out.
func (k EventKind) InvolvesDepartment() bool {
	return k == EventKindDepartmentAssigned
}

// IncludesQuality reports whether every quality manager is notified.
func (k EventKind) IncludesQuality() bool {
	return k == EventKindCreated || k == EventKindStatusChanged
}

// Notification is an in-app message for one user.
type Notification struct {
	ID        string
	UserID    string
	CaseID    *string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
