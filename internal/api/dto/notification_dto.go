package dto

import (
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

// NotificationResponse DTO.
type NotificationResponse struct {
	ID        string    `json:"id"`
	CaseID    *string   `json:"case_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{ID: n.ID, CaseID: n.CaseID, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt}
}
