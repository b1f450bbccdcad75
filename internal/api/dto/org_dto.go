package dto

import (
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

// DepartmentRequest provisions a department.
type DepartmentRequest struct {
	Name      string  `json:"name" validate:"required,max=255"`
	ManagerID *string `json:"manager_id" validate:"omitempty,uuid"`
	GroupID   *string `json:"group_id" validate:"omitempty,uuid"`
}

// GroupRequest provisions a department group.
type GroupRequest struct {
	Name          string   `json:"name" validate:"required,max=255"`
	ManagerID     *string  `json:"manager_id" validate:"omitempty,uuid"`
	DepartmentIDs []string `json:"department_ids" validate:"dive,uuid"`
}

// DepartmentIDsRequest replaces a user's department mapping.
type DepartmentIDsRequest struct {
	DepartmentIDs []string `json:"department_ids" validate:"dive,uuid"`
}

// ManagerIDsRequest replaces a director's manager mapping.
type ManagerIDsRequest struct {
	ManagerIDs []string `json:"manager_ids" validate:"dive,uuid"`
}

// DepartmentManagerRequest sets or clears a department's manager of record.
type DepartmentManagerRequest struct {
	ManagerID *string `json:"manager_id" validate:"omitempty,uuid"`
}

// MailSettingsRequest updates SMTP settings. An empty password keeps the stored one.
type MailSettingsRequest struct {
	Host          string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port          int    `json:"port" validate:"required,min=1,max=65535"`
	UseTLS        bool   `json:"use_tls"`
	UseSSL        bool   `json:"use_ssl"`
	Username      string `json:"username" validate:"max=255"`
	Password      string `json:"password" validate:"max=255"`
	DefaultSender string `json:"default_sender" validate:"omitempty,email"`
}

// MailSettingsResponse never echoes the password.
type MailSettingsResponse struct {
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	UseTLS        bool      `json:"use_tls"`
	UseSSL        bool      `json:"use_ssl"`
	Username      string    `json:"username"`
	PasswordSet   bool      `json:"password_set"`
	DefaultSender string    `json:"default_sender"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DepartmentResponse DTO.
type DepartmentResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ManagerID *string `json:"manager_id"`
	GroupID   *string `json:"group_id"`
	IsActive  bool    `json:"is_active"`
}

// GroupResponse DTO.
type GroupResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ManagerID *string `json:"manager_id"`
}

// DeliveryResponse is one ledger entry without the message bodies.
type DeliveryResponse struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Recipients  []string   `json:"recipients"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(d *domain.Department) DepartmentResponse {
	return DepartmentResponse{ID: d.ID, Name: d.Name, ManagerID: d.ManagerID, GroupID: d.GroupID, IsActive: d.IsActive}
}

// NewGroupResponse maps a group.
func NewGroupResponse(g *domain.DepartmentGroup) GroupResponse {
	return GroupResponse{ID: g.ID, Name: g.Name, ManagerID: g.ManagerID}
}

// NewDeliveryResponse maps a delivery record.
func NewDeliveryResponse(r *domain.DeliveryRecord) DeliveryResponse {
	return DeliveryResponse{
		ID:          r.ID,
		Subject:     r.Subject,
		Recipients:  r.Recipients,
		Status:      string(r.Status),
		Error:       r.Error,
		RetryCount:  r.RetryCount,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

// NewMailSettingsResponse maps settings.
func NewMailSettingsResponse(s domain.MailSettings) MailSettingsResponse {
	return MailSettingsResponse{
		Host:          s.Host,
		Port:          s.Port,
		UseTLS:        s.UseTLS,
		UseSSL:        s.UseSSL,
		Username:      s.Username,
		PasswordSet:   s.Password != "",
		DefaultSender: s.DefaultSender,
		UpdatedAt:     s.UpdatedAt,
	}
}

// ToDomain converts the request.
func (r MailSettingsRequest) ToDomain() domain.MailSettings {
	return domain.MailSettings{
		Host:          r.Host,
		Port:          r.Port,
		UseTLS:        r.UseTLS,
		UseSSL:        r.UseSSL,
		Username:      r.Username,
		Password:      r.Password,
		DefaultSender: r.DefaultSender,
	}
}

// ActiveRequest toggles a user or department.
type ActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
