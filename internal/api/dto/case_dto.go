package dto

import (
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Title        string     `json:"title" validate:"required,max=255"`
	Description  string     `json:"description" validate:"max=10000"`
	CaseType     string     `json:"case_type" validate:"max=64"`
	Source       string     `json:"source" validate:"max=64"`
	DepartmentID *string    `json:"department_id" validate:"omitempty,uuid"`
	Deadline     *time.Time `json:"deadline"`
}

// TransitionRequest moves a case to another status. Target is a status name
// such as "ASSIGNED".
type TransitionRequest struct {
	Target       string     `json:"target" validate:"required"`
	Comment      string     `json:"comment" validate:"max=5000"`
	DepartmentID *string    `json:"department_id" validate:"omitempty,uuid"`
	AssigneeID   *string    `json:"assignee_id" validate:"omitempty,uuid"`
	Deadline     *time.Time `json:"deadline"`
	RootCause    *string    `json:"root_cause" validate:"omitempty,max=10000"`
	ActionPlan   *string    `json:"action_plan" validate:"omitempty,max=10000"`
	RejectReason string     `json:"reject_reason" validate:"max=5000"`
}

// CommentRequest payload.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,max=5000"`
}

// CaseResponse is the public view of a case.
type CaseResponse struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CaseType           string     `json:"case_type"`
	Source             string     `json:"source"`
	Status             string     `json:"status"`
	NextStatuses       []string   `json:"next_statuses"`
	DepartmentID       *string    `json:"department_id"`
	SourceDepartmentID *string    `json:"source_department_id"`
	CreatorID          string     `json:"creator_id"`
	AssigneeID         *string    `json:"assignee_id"`
	RootCause          string     `json:"root_cause"`
	ActionPlan         string     `json:"action_plan"`
	PlanLocked         bool       `json:"plan_locked"`
	RejectReason       string     `json:"reject_reason,omitempty"`
	Deadline           *time.Time `json:"deadline"`
	CompletedAt        *time.Time `json:"completed_at"`
	ClosedAt           *time.Time `json:"closed_at"`
	ReopenCount        int        `json:"reopen_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CaseActionResponse is one audit entry.
type CaseActionResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	OldStatus *string   `json:"old_status"`
	NewStatus *string   `json:"new_status"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCaseResponse maps a case; next lists the statuses reachable from it.
func NewCaseResponse(c *domain.Case, next []domain.CaseStatus) CaseResponse {
	names := make([]string, 0, len(next))
	for _, s := range next {
		names = append(names, s.String())
	}
	return CaseResponse{
		ID:                 c.ID,
		Code:               c.Code,
		Title:              c.Title,
		Description:        c.Description,
		CaseType:           c.CaseType,
		Source:             c.Source,
		Status:             c.Status.String(),
		NextStatuses:       names,
		DepartmentID:       c.DepartmentID,
		SourceDepartmentID: c.SourceDepartmentID,
		CreatorID:          c.CreatorID,
		AssigneeID:         c.AssigneeID,
		RootCause:          c.RootCause,
		ActionPlan:         c.ActionPlan,
		PlanLocked:         c.PlanLocked,
		RejectReason:       c.RejectReason,
		Deadline:           c.Deadline,
		CompletedAt:        c.CompletedAt,
		ClosedAt:           c.ClosedAt,
		ReopenCount:        c.ReopenCount,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// NewCaseActionResponse maps an audit entry.
func NewCaseActionResponse(a domain.CaseAction) CaseActionResponse {
	resp := CaseActionResponse{ID: a.ID, ActorID: a.ActorID, Comment: a.Comment, CreatedAt: a.CreatedAt}
	if a.OldStatus != nil {
		name := a.OldStatus.String()
		resp.OldStatus = &name
	}
	if a.NewStatus != nil {
		name := a.NewStatus.String()
		resp.NewStatus = &name
	}
	return resp
}
