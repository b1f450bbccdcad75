package domain

import "time"

// DeliveryStatus is the state of one outbound email.
type DeliveryStatus string

const (
	DeliveryStatusQueued DeliveryStatus = "QUEUED"
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// IsTerminal reports whether the record will not change again without a manual resend.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

// DeliveryRecord tracks one outbound email.
type DeliveryRecord struct {
	ID          string
	Subject     string
	Recipients  []string
	HTMLBody    string
	TextBody    string
	Status      DeliveryStatus
	Error       string
	RetryCount  int
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// MailSettings are the persisted SMTP credentials. They may change at runtime.
type MailSettings struct {
	Host          string
	Port          int
	UseTLS        bool
	UseSSL        bool
	Username      string
	Password      string
	DefaultSender string
	UpdatedAt     time.Time
}

// Configured reports whether enough is set to attempt a send.
func (s MailSettings) Configured() bool {
	return s.Host != "" && s.Port > 0 && s.DefaultSender != ""
}
