package service

import (
	"context"
	"net/mail"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

// DeliveryLedger exposes manual control over recorded deliveries.
type DeliveryLedger interface {
	Resend(ctx context.Context, id string) (*domain.DeliveryRecord, error)
}

// OrgService administers the organization graph, mail settings and the
// delivery ledger.
type OrgService struct {
	store  repository.Store
	ledger DeliveryLedger
	hasher func(string) (string, error)
	logger *zap.Logger
}

// OrgDependencies bundles collaborators for the org service.
type OrgDependencies struct {
	Store  repository.Store
	Ledger DeliveryLedger
	// Hasher turns a plaintext password into a stored hash.
	Hasher func(string) (string, error)
	Logger *zap.Logger
}

// CreateUserInput provisions a user.
type CreateUserInput struct {
	Name         string
	Email        string
	Password     string
	Role         domain.Role
	DepartmentID *string
}

// CreateDepartmentInput provisions a department.
type CreateDepartmentInput struct {
	Name      string
	ManagerID *string
	GroupID   *string
}

// CreateGroupInput provisions a department group and its associated departments.
type CreateGroupInput struct {
	Name          string
	ManagerID     *string
	DepartmentIDs []string
}

// NewOrgService constructs the service.
func NewOrgService(deps OrgDependencies) *OrgService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgService{store: deps.Store, ledger: deps.Ledger, hasher: deps.Hasher, logger: logger}
}

// CreateUser provisions a user. Role is fixed for the user's lifetime.
func (s *OrgService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(input.Role)})
	}

	user := &domain.User{Name: name, Email: email, Role: input.Role, DepartmentID: input.DepartmentID, Active: true}
	if input.Password != "" {
		if s.hasher == nil {
			return nil, apperrors.NewValidationError("password login is not available", nil)
		}
		hash, err := s.hasher(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
			return apperrors.NewConflict("email already registered", map[string]any{"email": email})
		} else if !apperrors.IsNotFound(err) {
			return err
		}
		if input.DepartmentID != nil {
			if _, err := s.department(ctx, repos, *input.DepartmentID); err != nil {
				return err
			}
		}
		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user provisioned", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// EnsureAdmin provisions an admin with the given credentials unless a user
// with that email already exists. It reports whether a user was created.
func (s *OrgService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}
	_, err := s.CreateUser(ctx, CreateUserInput{Name: "Administrator", Email: email, Password: password, Role: domain.RoleAdmin})
	if err == nil {
		return true, nil
	}
	if apperrors.ToDomainError(err).Code == "CONFLICT" {
		return false, nil
	}
	return false, err
}

// CreateDepartment provisions an active department.
func (s *OrgService) CreateDepartment(ctx context.Context, input CreateDepartmentInput) (*domain.Department, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	dept := &domain.Department{Name: name, GroupID: input.GroupID, IsActive: true}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if input.ManagerID != nil {
			if err := s.checkOwner(ctx, repos, *input.ManagerID); err != nil {
				return err
			}
			dept.ManagerID = copyString(input.ManagerID)
		}
		if input.GroupID != nil {
			if _, err := repos.Groups.GetByID(ctx, *input.GroupID); err != nil {
				if apperrors.IsNotFound(err) {
					return apperrors.NewNotFound("group", map[string]any{"id": *input.GroupID})
				}
				return err
			}
		}
		return repos.Departments.Create(ctx, dept)
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// CreateGroup provisions a department group and links the listed departments to it.
func (s *OrgService) CreateGroup(ctx context.Context, input CreateGroupInput) (*domain.DepartmentGroup, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	group := &domain.DepartmentGroup{Name: name}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if input.ManagerID != nil {
			manager, err := s.user(ctx, repos, *input.ManagerID)
			if err != nil {
				return err
			}
			if !manager.Role.IsGroupManagerFamily() {
				return apperrors.NewValidationError("group manager must hold a group manager role", map[string]any{"role": string(manager.Role)})
			}
			group.ManagerID = copyString(&manager.ID)
		}
		if err := repos.Groups.Create(ctx, group); err != nil {
			return err
		}
		for _, id := range dedupe(input.DepartmentIDs) {
			if _, err := s.department(ctx, repos, id); err != nil {
				return err
			}
			if err := repos.Groups.AddDepartment(ctx, group.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// ManagedDepartments returns the departments the user resolves to, sorted by name.
func (s *OrgService) ManagedDepartments(ctx context.Context, userID string) ([]domain.Department, error) {
	repos := s.store.Repos()
	user, err := loadActor(ctx, repos, userID)
	if err != nil {
		return nil, err
	}
	set, err := NewOrgResolver(repos).ResolveManagedDepartments(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return []domain.Department{}, nil
	}
	depts, err := repos.Departments.GetByIDs(ctx, set.IDs())
	if err != nil {
		return nil, err
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })
	return depts, nil
}

// SetUserDepartments replaces the direct department mapping of a
// multi-department manager.
func (s *OrgService) SetUserDepartments(ctx context.Context, userID string, departmentIDs []string) error {
	departmentIDs = dedupe(departmentIDs)
	return s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		user, err := s.user(ctx, repos, userID)
		if err != nil {
			return err
		}
		if !user.Role.IsGroupManagerFamily() {
			return apperrors.NewValidationError("department mappings apply to group manager roles only", map[string]any{"role": string(user.Role)})
		}
		for _, id := range departmentIDs {
			if _, err := s.department(ctx, repos, id); err != nil {
				return err
			}
		}
		return repos.Mappings.ReplaceUserDepartments(ctx, userID, departmentIDs)
	})
}

// SetDirectorManagers replaces the managers a director oversees.
func (s *OrgService) SetDirectorManagers(ctx context.Context, directorID string, managerIDs []string) error {
	managerIDs = dedupe(managerIDs)
	return s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		director, err := s.user(ctx, repos, directorID)
		if err != nil {
			return err
		}
		if director.Role != domain.RoleDirector {
			return apperrors.NewValidationError("user is not a director", map[string]any{"role": string(director.Role)})
		}
		for _, id := range managerIDs {
			if id == directorID {
				return apperrors.NewValidationError("a director cannot oversee themselves", map[string]any{"manager_id": id})
			}
			if err := s.checkRole(ctx, repos, id, domain.Role.CanReportToDirector, "user cannot report to a director"); err != nil {
				return err
			}
		}
		return repos.Mappings.ReplaceDirectorManagers(ctx, directorID, managerIDs)
	})
}

// SetDepartmentManager sets or clears the manager of record of a department.
func (s *OrgService) SetDepartmentManager(ctx context.Context, departmentID string, managerID *string) (*domain.Department, error) {
	var dept *domain.Department
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		dept, err = s.department(ctx, repos, departmentID)
		if err != nil {
			return err
		}
		if managerID != nil {
			if err := s.checkOwner(ctx, repos, *managerID); err != nil {
				return err
			}
		}
		dept.ManagerID = copyString(managerID)
		return repos.Departments.Update(ctx, dept)
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// ListDepartments returns active departments sorted by name.
func (s *OrgService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	depts, err := s.store.Repos().Departments.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })
	return depts, nil
}

// SetDepartmentActive toggles a department. Inactive departments drop out of
// every resolved set and cannot receive new assignments.
func (s *OrgService) SetDepartmentActive(ctx context.Context, departmentID string, active bool) (*domain.Department, error) {
	var dept *domain.Department
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if dept, err = s.department(ctx, repos, departmentID); err != nil {
			return err
		}
		dept.IsActive = active
		return repos.Departments.Update(ctx, dept)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("department status changed", zap.String("department_id", departmentID), zap.Bool("active", active))
	return dept, nil
}

// SetUserActive toggles a user. Inactive users cannot log in and receive no notifications.
func (s *OrgService) SetUserActive(ctx context.Context, userID string, active bool) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		if user, err = s.user(ctx, repos, userID); err != nil {
			return err
		}
		user.Active = active
		return repos.Users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user status changed", zap.String("user_id", userID), zap.Bool("active", active))
	return user, nil
}

// MailSettings returns the stored SMTP settings.
func (s *OrgService) MailSettings(ctx context.Context) (domain.MailSettings, error) {
	return s.store.Repos().Settings.GetMailSettings(ctx)
}

// SaveMailSettings validates and stores SMTP settings. An empty password keeps
// the stored one. The dispatcher picks them up on its next attempt.
func (s *OrgService) SaveMailSettings(ctx context.Context, settings domain.MailSettings) (domain.MailSettings, error) {
	settings.Host = strings.TrimSpace(settings.Host)
	settings.DefaultSender = strings.TrimSpace(settings.DefaultSender)
	if settings.Port < 0 || settings.Port > 65535 {
		return domain.MailSettings{}, apperrors.NewValidationError("port out of range", map[string]any{"port": settings.Port})
	}
	if settings.UseTLS && settings.UseSSL {
		return domain.MailSettings{}, apperrors.NewValidationError("use_tls and use_ssl are mutually exclusive", nil)
	}
	if settings.DefaultSender != "" {
		if _, err := mail.ParseAddress(settings.DefaultSender); err != nil {
			return domain.MailSettings{}, apperrors.NewValidationError("default sender is invalid", map[string]any{"field": "default_sender"})
		}
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if settings.Password == "" {
			current, err := repos.Settings.GetMailSettings(ctx)
			if err != nil {
				return err
			}
			settings.Password = current.Password
		}
		return repos.Settings.SaveMailSettings(ctx, &settings)
	})
	if err != nil {
		return domain.MailSettings{}, err
	}
	s.logger.Info("mail settings updated", zap.String("host", settings.Host), zap.Int("port", settings.Port))
	return settings, nil
}

// ListDeliveries pages through the delivery ledger, newest first.
func (s *OrgService) ListDeliveries(ctx context.Context, status *domain.DeliveryStatus, limit, offset int) ([]domain.DeliveryRecord, error) {
	if status != nil && *status != domain.DeliveryStatusQueued && *status != domain.DeliveryStatusSent && *status != domain.DeliveryStatusFailed {
		return nil, apperrors.NewValidationError("unknown delivery status", map[string]any{"status": string(*status)})
	}
	return s.store.Repos().Deliveries.List(ctx, status, limit, offset)
}

// ResendDelivery re-queues a failed delivery.
func (s *OrgService) ResendDelivery(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	if s.ledger == nil {
		return nil, apperrors.NewConflict("delivery dispatcher unavailable", nil)
	}
	return s.ledger.Resend(ctx, id)
}

func (s *OrgService) user(ctx context.Context, repos repository.Repositories, id string) (*domain.User, error) {
	user, err := repos.Users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, err
	}
	return user, nil
}

func (s *OrgService) department(ctx context.Context, repos repository.Repositories, id string) (*domain.Department, error) {
	dept, err := repos.Departments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("department", map[string]any{"id": id})
		}
		return nil, err
	}
	return dept, nil
}

// checkOwner enforces that only department managers own departments.
func (s *OrgService) checkOwner(ctx context.Context, repos repository.Repositories, userID string) error {
	return s.checkRole(ctx, repos, userID, domain.Role.CanOwnDepartment, "user cannot manage a department")
}

func (s *OrgService) checkRole(ctx context.Context, repos repository.Repositories, userID string, allowed func(domain.Role) bool, message string) error {
	user, err := s.user(ctx, repos, userID)
	if err != nil {
		return err
	}
	if !allowed(user.Role) {
		return apperrors.NewValidationError(message, map[string]any{"user_id": userID, "role": string(user.Role)})
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
