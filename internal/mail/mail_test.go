package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not configured", ErrNotConfigured, false},
		{"mailbox busy", &textproto.Error{Code: 450, Msg: "mailbox busy"}, true},
		{"greylisted wrapped", fmt.Errorf("rcpt a@b: %w", &textproto.Error{Code: 421, Msg: "try later"}), true},
		{"invalid recipient", &textproto.Error{Code: 550, Msg: "no such user"}, false},
		{"auth failure", fmt.Errorf("smtp auth: %w", &textproto.Error{Code: 535, Msg: "bad credentials"}), false},
		{"eof", fmt.Errorf("smtp handshake: %w", io.EOF), true},
		{"reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"unknown", errors.New("smtp: server doesn't support AUTH"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBuildCaseNoticeSanitizesMessage(t *testing.T) {
	email, err := BuildCaseNotice(CaseNoticeData{
		RecipientName: "Ayşe",
		CaseCode:      "DOF-1A2B3C4D",
		CaseTitle:     "Calibration drift",
		Status:        "ASSIGNED",
		Message:       `Assigned to <b>Kanyon</b><script>alert(1)</script>`,
		CaseURL:       "https://dof.example.com/cases/1",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if email.Subject != "[DOF-1A2B3C4D] Calibration drift" {
		t.Fatalf("unexpected subject %q", email.Subject)
	}
	if strings.Contains(email.HTMLBody, "<script>") {
		t.Fatal("script survived sanitization")
	}
	if !strings.Contains(email.HTMLBody, "<b>Kanyon</b>") {
		t.Fatalf("expected basic formatting preserved, got %s", email.HTMLBody)
	}
	if strings.Contains(email.TextBody, "<b>") || !strings.Contains(email.TextBody, "Assigned to Kanyon") {
		t.Fatalf("unexpected text body %q", email.TextBody)
	}
}

func TestBuildMessageIsMultipart(t *testing.T) {
	msg := string(buildMessage("dof@example.com", Email{
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Hello",
		TextBody: "line1\nline2",
		HTMLBody: "<p>hi</p>",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	for _, want := range []string{
		"From: dof@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"multipart/alternative",
		"line1\r\nline2",
		"text/html",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendRejectsUnconfiguredSettings(t *testing.T) {
	sender := NewSMTPSender(time.Second)
	err := sender.Send(context.Background(), domain.MailSettings{}, Email{To: []string{"a@example.com"}})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
