package events

import (
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventCaseNotified fires after commit once a case event has persisted its notifications.
	EventCaseNotified EventType = "case_notified"
	// EventDeliveryCompleted fires when a delivery record reaches a terminal status.
	EventDeliveryCompleted EventType = "delivery_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    string      `json:"case_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OutboundMail is one email owed to a notified user.
type OutboundMail struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

// CaseNotifiedPayload carries the emails produced by one stakeholder fan-out.
type CaseNotifiedPayload struct {
	Kind       domain.EventKind  `json:"kind"`
	OldStatus  domain.CaseStatus `json:"old_status"`
	NewStatus  domain.CaseStatus `json:"new_status"`
	Recipients []string          `json:"recipients"`
	Mails      []OutboundMail    `json:"mails"`
}

// DeliveryCompletedPayload describes the final state of a delivery.
type DeliveryCompletedPayload struct {
	DeliveryID string                `json:"delivery_id"`
	Status     domain.DeliveryStatus `json:"status"`
	RetryCount int                   `json:"retry_count"`
	Error      string                `json:"error,omitempty"`
}
