package domain

import (
	"fmt"
	"time"
)

// CaseStatus enumerates lifecycle states for a case. Values are persisted as integers.
type CaseStatus int

const (
	CaseStatusDraft          CaseStatus = 0
	CaseStatusSubmitted      CaseStatus = 1
	CaseStatusInReview       CaseStatus = 2
	CaseStatusAssigned       CaseStatus = 3
	CaseStatusInProgress     CaseStatus = 4 // legacy
	CaseStatusResolved       CaseStatus = 5 // legacy
	CaseStatusClosed         CaseStatus = 6
	CaseStatusRejected       CaseStatus = 7
	CaseStatusPlanning       CaseStatus = 8
	CaseStatusImplementation CaseStatus = 9
	CaseStatusCompleted      CaseStatus = 10
	CaseStatusSourceReview   CaseStatus = 11
)

var caseStatusNames = map[CaseStatus]string{
	CaseStatusDraft:          "DRAFT",
	CaseStatusSubmitted:      "SUBMITTED",
	CaseStatusInReview:       "IN_REVIEW",
	CaseStatusAssigned:       "ASSIGNED",
	CaseStatusInProgress:     "IN_PROGRESS",
	CaseStatusResolved:       "RESOLVED",
	CaseStatusClosed:         "CLOSED",
	CaseStatusRejected:       "REJECTED",
	CaseStatusPlanning:       "PLANNING",
	CaseStatusImplementation: "IMPLEMENTATION",
	CaseStatusCompleted:      "COMPLETED",
	CaseStatusSourceReview:   "SOURCE_REVIEW",
}

func (s CaseStatus) String() string {
	if name, ok := caseStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CaseStatus(%d)", int(s))
}

// Valid reports whether s is one of the twelve known statuses.
func (s CaseStatus) Valid() bool {
	_, ok := caseStatusNames[s]
	return ok
}

// IsTerminal reports whether no transition may leave s.
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusClosed || s == CaseStatusRejected
}

// IsLegacy reports whether s belongs to the retired workflow. Legacy statuses
// stay readable but are never the target of a transition.
func (s CaseStatus) IsLegacy() bool {
	return s == CaseStatusInProgress || s == CaseStatusResolved
}

// IsOpen reports whether the case still needs work.
func (s CaseStatus) IsOpen() bool {
	return !s.IsTerminal()
}

// ParseCaseStatus maps a status name back to its value.
func ParseCaseStatus(name string) (CaseStatus, bool) {
	for status, candidate := range caseStatusNames {
		if candidate == name {
			return status, true
		}
	}
	return 0, false
}

// Case is a corrective/preventive action record (DÖF).
type Case struct {
	ID                 string
	Code               string
	Title              string
	Description        string
	CaseType           string
	Source             string
	Status             CaseStatus
	DepartmentID       *string
	SourceDepartmentID *string
	CreatorID          string
	AssigneeID         *string
	RootCause          string
	ActionPlan         string
	PlanLocked         bool
	RejectReason       string
	Deadline           *time.Time
	CompletedAt        *time.Time
	ClosedAt           *time.Time
	ReopenCount        int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CaseStatistics is the read-only projection consumed by the digest report job.
type CaseStatistics struct {
	Open             int `json:"open"`
	ClosedThisWeek   int `json:"closed_this_week"`
	UpcomingDeadline int `json:"upcoming_deadline"`
	Overdue          int `json:"overdue"`
}
