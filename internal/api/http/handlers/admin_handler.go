package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dof-service/internal/api/dto"
	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/service"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// AdminHandler provisions the organization and operates the mail ledger.
// Routes are mounted behind auth.RequireAdmin.
type AdminHandler struct {
	org *service.OrgService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(org *service.OrgService) *AdminHandler {
	return &AdminHandler{org: org}
}

// CreateUser POST /admin/users.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.org.CreateUser(c.UserContext(), service.CreateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         domain.Role(req.Role),
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// CreateDepartment POST /admin/departments.
func (h *AdminHandler) CreateDepartment(c *fiber.Ctx) error {
	var req dto.DepartmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dept, err := h.org.CreateDepartment(c.UserContext(), service.CreateDepartmentInput{
		Name:      req.Name,
		ManagerID: req.ManagerID,
		GroupID:   req.GroupID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// CreateGroup POST /admin/groups.
func (h *AdminHandler) CreateGroup(c *fiber.Ctx) error {
	var req dto.GroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	group, err := h.org.CreateGroup(c.UserContext(), service.CreateGroupInput{
		Name:          req.Name,
		ManagerID:     req.ManagerID,
		DepartmentIDs: req.DepartmentIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewGroupResponse(group)})
}

// SetUserActive PUT /admin/users/:id/active.
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	var req dto.ActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.org.SetUserActive(c.UserContext(), id, *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ListDepartments GET /admin/departments.
func (h *AdminHandler) ListDepartments(c *fiber.Ctx) error {
	depts, err := h.org.ListDepartments(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		items = append(items, dto.NewDepartmentResponse(&depts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SetDepartmentActive PUT /admin/departments/:id/active.
func (h *AdminHandler) SetDepartmentActive(c *fiber.Ctx) error {
	id, err := pathID(c, "department")
	if err != nil {
		return err
	}
	var req dto.ActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dept, err := h.org.SetDepartmentActive(c.UserContext(), id, *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// SetUserDepartments PUT /admin/users/:id/departments.
func (h *AdminHandler) SetUserDepartments(c *fiber.Ctx) error {
	id, err := pathID(c, "user")
	if err != nil {
		return err
	}
	var req dto.DepartmentIDsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.org.SetUserDepartments(c.UserContext(), id, req.DepartmentIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetDirectorManagers PUT /admin/directors/:id/managers.
func (h *AdminHandler) SetDirectorManagers(c *fiber.Ctx) error {
	id, err := pathID(c, "director")
	if err != nil {
		return err
	}
	var req dto.ManagerIDsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.org.SetDirectorManagers(c.UserContext(), id, req.ManagerIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetDepartmentManager PUT /admin/departments/:id/manager.
func (h *AdminHandler) SetDepartmentManager(c *fiber.Ctx) error {
	id, err := pathID(c, "department")
	if err != nil {
		return err
	}
	var req dto.DepartmentManagerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dept, err := h.org.SetDepartmentManager(c.UserContext(), id, req.ManagerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// ListDeliveries GET /admin/deliveries?status=FAILED.
func (h *AdminHandler) ListDeliveries(c *fiber.Ctx) error {
	var status *domain.DeliveryStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.DeliveryStatus(raw)
		status = &s
	}
	limit, offset := pagination(c)
	records, err := h.org.ListDeliveries(c.UserContext(), status, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.DeliveryResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.NewDeliveryResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ResendDelivery POST /admin/deliveries/:id/resend.
func (h *AdminHandler) ResendDelivery(c *fiber.Ctx) error {
	record, err := h.org.ResendDelivery(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.NewDeliveryResponse(record)})
}

// MailSettings GET /admin/settings/mail.
func (h *AdminHandler) MailSettings(c *fiber.Ctx) error {
	settings, err := h.org.MailSettings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMailSettingsResponse(settings)})
}

// SaveMailSettings PUT /admin/settings/mail.
func (h *AdminHandler) SaveMailSettings(c *fiber.Ctx) error {
	var req dto.MailSettingsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UseTLS && req.UseSSL {
		return apperrors.NewValidationError("use_tls and use_ssl are mutually exclusive", nil)
	}
	saved, err := h.org.SaveMailSettings(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMailSettingsResponse(saved)})
}
