package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dof-service/internal/api/dto"
	"github.com/spec-kit/dof-service/internal/service"
)

// OrgHandler answers "what do I manage" questions for the caller.
type OrgHandler struct {
	org   *service.OrgService
	stats *service.StatisticsService
}

// NewOrgHandler constructs handler.
func NewOrgHandler(org *service.OrgService, stats *service.StatisticsService) *OrgHandler {
	return &OrgHandler{org: org, stats: stats}
}

// ManagedDepartments GET /org/managed-departments.
func (h *OrgHandler) ManagedDepartments(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	depts, err := h.org.ManagedDepartments(c.UserContext(), userID)
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		items = append(items, dto.NewDepartmentResponse(&depts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /stats.
func (h *OrgHandler) Stats(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	stats, err := h.stats.ForUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
