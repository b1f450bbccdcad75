package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/mail"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// NotifyResult is the outcome of one stakeholder fan-out.
type NotifyResult struct {
	Count      int
	Recipients []string
	// Mails are handed to the delivery dispatcher once the transaction commits.
	Mails []events.OutboundMail
}

// StakeholderEngine decides who hears about a case event and persists their
// notifications through the repositories it was built with.
type StakeholderEngine struct {
	users         repository.UserRepository
	departments   repository.DepartmentRepository
	notifications repository.NotificationRepository
	resolver      *OrgResolver
	baseURL       string
}

// NewStakeholderEngine binds the engine to repos. Build it from transaction
// repositories so notification rows commit or roll back with the case write.
func NewStakeholderEngine(repos repository.Repositories, baseURL string) *StakeholderEngine {
	return &StakeholderEngine{
		users:         repos.Users,
		departments:   repos.Departments,
		notifications: repos.Notifications,
		resolver:      NewOrgResolver(repos),
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

// NotifyEvent persists one notification per stakeholder of c for kind and
// returns how many were created. The actor is never notified.
func (e *StakeholderEngine) NotifyEvent(ctx context.Context, c *domain.Case, kind domain.EventKind, actor *domain.User, message string) (NotifyResult, error) {
	var result NotifyResult
	if c == nil {
		return result, apperrors.NewNotFound("case", nil)
	}

	candidates, err := e.recipients(ctx, c, kind)
	if err != nil {
		return result, err
	}

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, userID := range candidates {
		if userID == "" || userID == actorID {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		user, err := e.users.GetByID(ctx, userID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return result, err
		}
		if !user.Active {
			continue
		}

		caseID := c.ID
		n := &domain.Notification{UserID: user.ID, CaseID: &caseID, Message: message}
		if err := e.notifications.Create(ctx, n); err != nil {
			return result, fmt.Errorf("create notification for %s: %w", user.ID, err)
		}
		result.Count++
		result.Recipients = append(result.Recipients, user.ID)

		if strings.TrimSpace(user.Email) == "" {
			continue
		}
		outbound, err := e.render(c, user, message)
		if err != nil {
			return result, err
		}
		result.Mails = append(result.Mails, outbound)
	}
	return result, nil
}

// recipients lists candidate user ids in discovery order, duplicates included.
func (e *StakeholderEngine) recipients(ctx context.Context, c *domain.Case, kind domain.EventKind) ([]string, error) {
	candidates := []string{c.CreatorID}

	if kind.InvolvesDepartment() && c.DepartmentID != nil {
		deptUsers, err := e.departmentStakeholders(ctx, *c.DepartmentID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, deptUsers...)
	}

	if kind.IncludesQuality() {
		quality, err := e.users.FindUsersByRole(ctx, domain.RoleQualityManager)
		if err != nil {
			return nil, err
		}
		for _, u := range quality {
			candidates = append(candidates, u.ID)
		}
	}
	return candidates, nil
}

// departmentStakeholders covers the manager of record, department managers
// homed in the department, and every group manager or director whose
// resolved set contains it.
func (e *StakeholderEngine) departmentStakeholders(ctx context.Context, departmentID string) ([]string, error) {
	var ids []string

	dept, err := e.departments.GetByID(ctx, departmentID)
	switch {
	case err == nil:
		if dept.ManagerID != nil {
			ids = append(ids, *dept.ManagerID)
		}
	case apperrors.IsNotFound(err):
		return nil, nil
	default:
		return nil, err
	}

	homed, err := e.users.FindActiveUsersByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	for _, u := range homed {
		if u.Role.IsDepartmentManagerFamily() {
			ids = append(ids, u.ID)
		}
	}

	overseers, err := e.users.FindUsersByRole(ctx, append(append([]domain.Role{}, domain.GroupManagerRoles...), domain.RoleDirector)...)
	if err != nil {
		return nil, err
	}
	for i := range overseers {
		set, err := e.resolver.ResolveManagedDepartments(ctx, &overseers[i])
		if err != nil {
			return nil, err
		}
		if set.Has(departmentID) {
			ids = append(ids, overseers[i].ID)
		}
	}
	return ids, nil
}

func (e *StakeholderEngine) render(c *domain.Case, user *domain.User, message string) (events.OutboundMail, error) {
	caseURL := ""
	if e.baseURL != "" {
		caseURL = e.baseURL + "/cases/" + c.ID
	}
	email, err := mail.BuildCaseNotice(mail.CaseNoticeData{
		RecipientName: user.Name,
		CaseCode:      c.Code,
		CaseTitle:     c.Title,
		Status:        c.Status.String(),
		Message:       message,
		CaseURL:       caseURL,
	})
	if err != nil {
		return events.OutboundMail{}, err
	}
	return events.OutboundMail{
		UserID:   user.ID,
		Email:    user.Email,
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}, nil
}
