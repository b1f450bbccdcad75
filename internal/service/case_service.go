package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/observability"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// CaseService runs the case lifecycle. Every write happens in one store
// transaction together with its audit row and stakeholder notifications;
// emails leave only after commit.
type CaseService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	codes      CodeGenerator
	metrics    *observability.Metrics
	logger     *zap.Logger
	baseURL    string
	now        func() time.Time
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	Store         repository.Store
	Dispatcher    events.Dispatcher
	CodeGenerator CodeGenerator
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	// BaseURL prefixes case links in outbound mail.
	BaseURL string
}

// CreateCaseInput describes a new case.
type CreateCaseInput struct {
	Title        string
	Description  string
	CaseType     string
	Source       string
	DepartmentID *string
	Deadline     *time.Time
}

// TransitionInput carries the target status and the fields some edges need.
type TransitionInput struct {
	Target  domain.CaseStatus
	Comment string
	// DepartmentID and AssigneeID apply to moves into Assigned.
	DepartmentID *string
	AssigneeID   *string
	Deadline     *time.Time
	// RootCause and ActionPlan apply to Assigned -> Planning.
	RootCause    *string
	ActionPlan   *string
	RejectReason string
}

// CaseListFilter narrows a visibility-scoped listing.
type CaseListFilter struct {
	Statuses []domain.CaseStatus
	Limit    int
	Offset   int
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	codes := deps.CodeGenerator
	if codes == nil {
		codes = DefaultCodeGenerator
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		codes:      codes,
		metrics:    deps.Metrics,
		logger:     logger,
		baseURL:    deps.BaseURL,
		now:        time.Now,
	}
}

// CreateCase opens a Draft case owned by actorID and tells quality managers.
func (s *CaseService) CreateCase(ctx context.Context, actorID string, input CreateCaseInput) (*domain.Case, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	var (
		created *domain.Case
		notice  NotifyResult
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		actor, err := loadActor(ctx, repos, actorID)
		if err != nil {
			return err
		}
		if input.DepartmentID != nil {
			if _, err := activeDepartment(ctx, repos, *input.DepartmentID); err != nil {
				return err
			}
		}

		code, err := s.codes.Generate(ctx, CodeRequest{CaseType: input.CaseType, Source: input.Source, DepartmentID: input.DepartmentID})
		if err != nil {
			return fmt.Errorf("generate case code: %w", err)
		}

		c := &domain.Case{
			Code:               code,
			Title:              title,
			Description:        strings.TrimSpace(input.Description),
			CaseType:           strings.TrimSpace(input.CaseType),
			Source:             strings.TrimSpace(input.Source),
			Status:             domain.CaseStatusDraft,
			DepartmentID:       input.DepartmentID,
			SourceDepartmentID: copyString(actor.DepartmentID),
			CreatorID:          actor.ID,
			Deadline:           input.Deadline,
		}
		if err := repos.Cases.Create(ctx, c); err != nil {
			return err
		}

		engine := NewStakeholderEngine(repos, s.baseURL)
		notice, err = engine.NotifyEvent(ctx, c, domain.EventKindCreated, actor, fmt.Sprintf("%s created: %s", c.Code, c.Title))
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, created, actorID, domain.EventKindCreated, created.Status, created.Status, notice)
	return created, nil
}

// Transition moves a case to input.Target. Reachability is checked first,
// then role and department authority, then field preconditions; any failure
// leaves no trace.
func (s *CaseService) Transition(ctx context.Context, actorID, caseID string, input TransitionInput) (*domain.Case, error) {
	var (
		updated   *domain.Case
		from      domain.CaseStatus
		fromLabel = "UNKNOWN"
		kind      domain.EventKind
		notice    NotifyResult
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		actor, err := loadActor(ctx, repos, actorID)
		if err != nil {
			return err
		}
		c, err := repos.Cases.GetForUpdate(ctx, caseID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewNotFound("case", map[string]any{"id": caseID})
			}
			return err
		}
		from = c.Status
		fromLabel = from.String()

		rule, ok := lookupTransition(c.Status, input.Target)
		if !ok {
			return apperrors.NewInvalidTransition(c.Status, input.Target)
		}

		resolver := NewOrgResolver(repos)
		if err := s.authorize(ctx, resolver, actor, c, rule, input); err != nil {
			return err
		}

		deptName, err := s.apply(ctx, repos, c, input)
		if err != nil {
			return err
		}
		if err := repos.Cases.Update(ctx, c); err != nil {
			return err
		}

		oldStatus, newStatus := from, c.Status
		action := &domain.CaseAction{
			CaseID:    c.ID,
			ActorID:   actor.ID,
			OldStatus: &oldStatus,
			NewStatus: &newStatus,
			Comment:   strings.TrimSpace(input.Comment),
		}
		if err := repos.Actions.Create(ctx, action); err != nil {
			return err
		}

		kind = domain.EventKindStatusChanged
		if c.Status == domain.CaseStatusAssigned {
			kind = domain.EventKindDepartmentAssigned
		}
		engine := NewStakeholderEngine(repos, s.baseURL)
		notice, err = engine.NotifyEvent(ctx, c, kind, actor, transitionMessage(c, from, deptName, action.Comment))
		if err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		s.metrics.RecordTransition(fromLabel, input.Target.String(), errorCode(err))
		return nil, err
	}

	s.metrics.RecordTransition(from.String(), updated.Status.String(), "ok")
	s.afterCommit(ctx, updated, actorID, kind, from, updated.Status, notice)
	return updated, nil
}

// AddComment appends a comment-only action to a case the actor can see.
func (s *CaseService) AddComment(ctx context.Context, actorID, caseID, comment string) (*domain.CaseAction, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.NewValidationError("comment is required", nil)
	}
	var action *domain.CaseAction
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		actor, c, err := s.visibleCase(ctx, repos, actorID, caseID)
		if err != nil {
			return err
		}
		action = &domain.CaseAction{CaseID: c.ID, ActorID: actor.ID, Comment: comment}
		return repos.Actions.Create(ctx, action)
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// GetCase returns a case the actor can see.
func (s *CaseService) GetCase(ctx context.Context, actorID, caseID string) (*domain.Case, error) {
	_, c, err := s.visibleCase(ctx, s.store.Repos(), actorID, caseID)
	return c, err
}

// ListActions returns the audit trail of a case the actor can see, oldest first.
func (s *CaseService) ListActions(ctx context.Context, actorID, caseID string) ([]domain.CaseAction, error) {
	repos := s.store.Repos()
	if _, _, err := s.visibleCase(ctx, repos, actorID, caseID); err != nil {
		return nil, err
	}
	return repos.Actions.ListByCase(ctx, caseID)
}

// ListCases lists cases the actor created, is assigned to, or whose department
// the actor resolves to. Admins and quality managers see every case.
func (s *CaseService) ListCases(ctx context.Context, actorID string, filter CaseListFilter) ([]domain.Case, error) {
	repos := s.store.Repos()
	actor, err := loadActor(ctx, repos, actorID)
	if err != nil {
		return nil, err
	}
	repoFilter := repository.CaseFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if seesEverything(actor) {
		repoFilter.Unrestricted = true
	} else {
		set, err := NewOrgResolver(repos).ResolveManagedDepartments(ctx, actor)
		if err != nil {
			return nil, err
		}
		repoFilter.VisibleTo = actor.ID
		repoFilter.DepartmentIDs = set.IDs()
	}
	return repos.Cases.List(ctx, repoFilter)
}

func (s *CaseService) visibleCase(ctx context.Context, repos repository.Repositories, actorID, caseID string) (*domain.User, *domain.Case, error) {
	actor, err := loadActor(ctx, repos, actorID)
	if err != nil {
		return nil, nil, err
	}
	c, err := repos.Cases.GetByID(ctx, caseID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewNotFound("case", map[string]any{"id": caseID})
		}
		return nil, nil, err
	}
	ok, err := canView(ctx, NewOrgResolver(repos), actor, c)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.NewNotAuthorized("case is outside your scope", map[string]any{"id": caseID})
	}
	return actor, c, nil
}

func (s *CaseService) authorize(ctx context.Context, resolver *OrgResolver, actor *domain.User, c *domain.Case, rule transitionRule, input TransitionInput) error {
	denied := func(reason string) error {
		return apperrors.NewNotAuthorized(reason, map[string]any{
			"from": c.Status.String(),
			"to":   input.Target.String(),
			"role": string(actor.Role),
		})
	}

	isCreator := actor.ID == c.CreatorID
	if rule.creatorOnly {
		if isCreator {
			return nil
		}
		return denied("only the creator may take this step")
	}
	if rule.creatorAllowed && isCreator {
		return nil
	}
	if actor.Role != domain.RoleAdmin && !rule.roleAllowed(actor.Role) {
		return denied("role may not take this step")
	}

	var deptID *string
	switch rule.scope {
	case scopeNone:
		return nil
	case scopeCase:
		deptID = targetDepartment(c, input)
	case scopeSource:
		deptID = c.SourceDepartmentID
	}
	if deptID == nil {
		if seesEverything(actor) {
			return nil
		}
		return denied("no department to authorize against")
	}
	ok, err := resolver.CanManage(ctx, actor, *deptID)
	if err != nil {
		return err
	}
	if !ok {
		return denied("department is outside your authority")
	}
	return nil
}

// apply checks field preconditions and mutates c for the target status. It
// returns the department name when the move assigns one.
func (s *CaseService) apply(ctx context.Context, repos repository.Repositories, c *domain.Case, input TransitionInput) (string, error) {
	from := c.Status
	now := s.now()
	var deptName string

	switch input.Target {
	case domain.CaseStatusAssigned:
		deptID := targetDepartment(c, input)
		if deptID == nil {
			return "", apperrors.NewPreconditionFailed("department is required to assign a case", map[string]any{"field": "department_id"})
		}
		dept, err := activeDepartment(ctx, repos, *deptID)
		if err != nil {
			return "", err
		}
		deptName = dept.Name
		changed := c.DepartmentID == nil || *c.DepartmentID != dept.ID
		c.DepartmentID = copyString(&dept.ID)

		switch {
		case input.AssigneeID != nil:
			assignee, err := repos.Users.GetByID(ctx, *input.AssigneeID)
			if err != nil && !apperrors.IsNotFound(err) {
				return "", err
			}
			if err != nil || !assignee.Active {
				return "", apperrors.NewPreconditionFailed("assignee not found or inactive", map[string]any{"field": "assignee_id"})
			}
			c.AssigneeID = copyString(&assignee.ID)
		case changed || c.AssigneeID == nil:
			c.AssigneeID = copyString(dept.ManagerID)
		}
		if input.Deadline != nil {
			deadline := *input.Deadline
			c.Deadline = &deadline
		}
		c.PlanLocked = false
		if from == domain.CaseStatusSourceReview {
			c.ReopenCount++
			c.CompletedAt = nil
		}

	case domain.CaseStatusRejected:
		reason := strings.TrimSpace(input.RejectReason)
		if reason == "" {
			reason = strings.TrimSpace(input.Comment)
		}
		if reason == "" {
			return "", apperrors.NewPreconditionFailed("a reject reason is required", map[string]any{"field": "reject_reason"})
		}
		c.RejectReason = reason

	case domain.CaseStatusPlanning:
		if input.RootCause != nil {
			c.RootCause = strings.TrimSpace(*input.RootCause)
		}
		if input.ActionPlan != nil {
			c.ActionPlan = strings.TrimSpace(*input.ActionPlan)
		}
		var missing []string
		if strings.TrimSpace(c.RootCause) == "" {
			missing = append(missing, "root_cause")
		}
		if strings.TrimSpace(c.ActionPlan) == "" {
			missing = append(missing, "action_plan")
		}
		if len(missing) > 0 {
			return "", apperrors.NewPreconditionFailed("root cause and action plan are required before planning", map[string]any{"missing": missing})
		}

	case domain.CaseStatusImplementation:
		if strings.TrimSpace(c.ActionPlan) == "" {
			return "", apperrors.NewPreconditionFailed("an action plan is required before implementation", map[string]any{"field": "action_plan"})
		}
		c.PlanLocked = true

	case domain.CaseStatusCompleted:
		c.CompletedAt = &now

	case domain.CaseStatusClosed:
		c.ClosedAt = &now
	}

	c.Status = input.Target
	return deptName, nil
}

func (s *CaseService) afterCommit(ctx context.Context, c *domain.Case, actorID string, kind domain.EventKind, from, to domain.CaseStatus, notice NotifyResult) {
	s.metrics.RecordNotifications(string(kind), notice.Count)
	s.logger.Info("case event",
		zap.String("case_id", c.ID),
		zap.String("code", c.Code),
		zap.String("kind", string(kind)),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("notifications", notice.Count))

	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventCaseNotified,
		CaseID:    c.ID,
		ActorID:   actorID,
		Timestamp: s.now(),
		Payload: events.CaseNotifiedPayload{
			Kind:       kind,
			OldStatus:  from,
			NewStatus:  to,
			Recipients: notice.Recipients,
			Mails:      notice.Mails,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("case event handlers failed", zap.String("case_id", c.ID), zap.Error(err))
	}
}

func targetDepartment(c *domain.Case, input TransitionInput) *string {
	if input.Target == domain.CaseStatusAssigned && input.DepartmentID != nil {
		return input.DepartmentID
	}
	return c.DepartmentID
}

func transitionMessage(c *domain.Case, from domain.CaseStatus, deptName, comment string) string {
	var msg string
	if c.Status == domain.CaseStatusAssigned && deptName != "" {
		msg = fmt.Sprintf("%s assigned to %s", c.Code, deptName)
	} else {
		msg = fmt.Sprintf("%s moved from %s to %s", c.Code, from, c.Status)
	}
	if comment != "" {
		msg += ": " + comment
	}
	return msg
}

func loadActor(ctx context.Context, repos repository.Repositories, actorID string) (*domain.User, error) {
	actor, err := repos.Users.GetByID(ctx, actorID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": actorID})
		}
		return nil, err
	}
	if !actor.Active {
		return nil, apperrors.NewNotAuthorized("user is inactive", map[string]any{"id": actorID})
	}
	return actor, nil
}

func activeDepartment(ctx context.Context, repos repository.Repositories, id string) (*domain.Department, error) {
	dept, err := repos.Departments.GetByID(ctx, id)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if err != nil || !dept.IsActive {
		return nil, apperrors.NewPreconditionFailed("department not found or inactive", map[string]any{"department_id": id})
	}
	return dept, nil
}

func canView(ctx context.Context, resolver *OrgResolver, actor *domain.User, c *domain.Case) (bool, error) {
	if seesEverything(actor) || actor.ID == c.CreatorID {
		return true, nil
	}
	if c.AssigneeID != nil && *c.AssigneeID == actor.ID {
		return true, nil
	}
	if c.DepartmentID == nil {
		return false, nil
	}
	set, err := resolver.ResolveManagedDepartments(ctx, actor)
	if err != nil {
		return false, err
	}
	return set.Has(*c.DepartmentID), nil
}

func seesEverything(u *domain.User) bool {
	return u.Role == domain.RoleAdmin || u.Role == domain.RoleQualityManager
}

func errorCode(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
