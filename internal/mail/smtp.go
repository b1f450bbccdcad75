package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

// Sender delivers one email using the supplied settings.
type Sender interface {
	Send(ctx context.Context, settings domain.MailSettings, email Email) error
}

// SMTPSender talks to an SMTP relay. UseSSL dials implicit TLS; UseTLS
// upgrades a plain connection with STARTTLS.
type SMTPSender struct {
	Timeout time.Duration
	now     func() time.Time
}

// NewSMTPSender builds a sender with a per-attempt timeout.
func NewSMTPSender(timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPSender{Timeout: timeout, now: time.Now}
}

// Send transmits email.
func (s *SMTPSender) Send(ctx context.Context, settings domain.MailSettings, email Email) error {
	if !settings.Configured() {
		return ErrNotConfigured
	}
	if len(email.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	conn, err := s.dial(ctx, addr, settings)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, settings.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if settings.UseTLS && !settings.UseSSL {
		if err := client.StartTLS(&tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if settings.Username != "" {
		auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(settings.DefaultSender); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range email.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(buildMessage(settings.DefaultSender, email, s.now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish data: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, addr string, settings domain.MailSettings) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.Timeout}
	if settings.UseSSL {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}
