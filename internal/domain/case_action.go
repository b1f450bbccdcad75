package domain

import "time"

// CaseAction is an immutable audit or comment entry attached to a case.
// OldStatus and NewStatus are both nil for plain comments.
type CaseAction struct {
	ID        string
	CaseID    string
	ActorID   string
	OldStatus *CaseStatus
	NewStatus *CaseStatus
	Comment   string
	CreatedAt time.Time
}

// IsTransition reports whether the entry records a status change.
func (a CaseAction) IsTransition() bool {
	return a.OldStatus != nil && a.NewStatus != nil
}
