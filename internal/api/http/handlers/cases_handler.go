package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dof-service/internal/api/dto"
	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/service"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// CasesHandler exposes the case lifecycle.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.CreateCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	created, err := h.service.CreateCase(c.UserContext(), userID, service.CreateCaseInput{
		Title:        req.Title,
		Description:  req.Description,
		CaseType:     req.CaseType,
		Source:       req.Source,
		DepartmentID: req.DepartmentID,
		Deadline:     req.Deadline,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": caseView(created)})
}

// ListCases GET /cases?status=ASSIGNED,PLANNING.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	filter := service.CaseListFilter{}
	filter.Limit, filter.Offset = pagination(c)
	if raw := c.Query("status"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			status, err := parseStatus(name)
			if err != nil {
				return err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	cases, err := h.service.ListCases(c.UserContext(), userID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.CaseResponse, 0, len(cases))
	for i := range cases {
		items = append(items, caseView(&cases[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	id, err := pathID(c, "case")
	if err != nil {
		return err
	}
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	found, err := h.service.GetCase(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseView(found)})
}

// ListActions GET /cases/:id/actions.
func (h *CasesHandler) ListActions(c *fiber.Ctx) error {
	id, err := pathID(c, "case")
	if err != nil {
		return err
	}
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	actions, err := h.service.ListActions(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	items := make([]dto.CaseActionResponse, 0, len(actions))
	for _, a := range actions {
		items = append(items, dto.NewCaseActionResponse(a))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Transition POST /cases/:id/transitions.
func (h *CasesHandler) Transition(c *fiber.Ctx) error {
	id, err := pathID(c, "case")
	if err != nil {
		return err
	}
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	target, err := parseStatus(req.Target)
	if err != nil {
		return err
	}
	updated, err := h.service.Transition(c.UserContext(), userID, id, service.TransitionInput{
		Target:       target,
		Comment:      req.Comment,
		DepartmentID: req.DepartmentID,
		AssigneeID:   req.AssigneeID,
		Deadline:     req.Deadline,
		RootCause:    req.RootCause,
		ActionPlan:   req.ActionPlan,
		RejectReason: req.RejectReason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseView(updated)})
}

// AddComment POST /cases/:id/comments.
func (h *CasesHandler) AddComment(c *fiber.Ctx) error {
	id, err := pathID(c, "case")
	if err != nil {
		return err
	}
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	action, err := h.service.AddComment(c.UserContext(), userID, id, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewCaseActionResponse(*action)})
}

func caseView(c *domain.Case) dto.CaseResponse {
	return dto.NewCaseResponse(c, service.NextStatuses(c.Status))
}

func parseStatus(name string) (domain.CaseStatus, error) {
	status, ok := domain.ParseCaseStatus(strings.ToUpper(strings.TrimSpace(name)))
	if !ok {
		return 0, apperrors.NewValidationError("unknown status", map[string]any{"status": name})
	}
	return status, nil
}
