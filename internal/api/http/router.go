package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/dof-service/internal/api/http/handlers"
	"github.com/spec-kit/dof-service/internal/auth"
	"github.com/spec-kit/dof-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Cases          *handlers.CasesHandler
	Notifications  *handlers.NotificationsHandler
	Org            *handlers.OrgHandler
	Admin          *handlers.AdminHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	requireAuth := cfg.AuthMiddleware.Handle

	cases := app.Group("/cases", requireAuth)
	cases.Post("/", cfg.Cases.CreateCase)
	cases.Get("/", cfg.Cases.ListCases)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Get("/:id/actions", cfg.Cases.ListActions)
	cases.Post("/:id/transitions", cfg.Cases.Transition)
	cases.Post("/:id/comments", cfg.Cases.AddComment)

	notifications := app.Group("/notifications", requireAuth)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Post("/:id/unread", cfg.Notifications.MarkUnread)

	app.Get("/org/managed-departments", requireAuth, cfg.Org.ManagedDepartments)
	app.Get("/stats", requireAuth, cfg.Org.Stats)

	admin := app.Group("/admin", requireAuth, auth.RequireAdmin())
	admin.Post("/users", cfg.Admin.CreateUser)
	admin.Put("/users/:id/active", cfg.Admin.SetUserActive)
	admin.Put("/users/:id/departments", cfg.Admin.SetUserDepartments)
	admin.Get("/departments", cfg.Admin.ListDepartments)
	admin.Post("/departments", cfg.Admin.CreateDepartment)
	admin.Put("/departments/:id/active", cfg.Admin.SetDepartmentActive)
	admin.Put("/departments/:id/manager", cfg.Admin.SetDepartmentManager)
	admin.Post("/groups", cfg.Admin.CreateGroup)
	admin.Put("/directors/:id/managers", cfg.Admin.SetDirectorManagers)
	admin.Get("/deliveries", cfg.Admin.ListDeliveries)
	admin.Post("/deliveries/:id/resend", cfg.Admin.ResendDelivery)
	admin.Get("/settings/mail", cfg.Admin.MailSettings)
	admin.Put("/settings/mail", cfg.Admin.SaveMailSettings)
}
