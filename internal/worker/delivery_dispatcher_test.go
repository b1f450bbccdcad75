package worker

import (
	"context"
	"errors"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/mail"
	"github.com/spec-kit/dof-service/internal/observability"
	"github.com/spec-kit/dof-service/internal/repository"
	"github.com/spec-kit/dof-service/internal/repository/memory"
	"github.com/spec-kit/dof-service/pkg/util/errorutil"
)

type scriptedSender struct {
	mu       sync.Mutex
	script   []error
	calls    int
	settings []domain.MailSettings
}

func (s *scriptedSender) Send(_ context.Context, settings domain.MailSettings, _ mail.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, settings)
	idx := s.calls
	s.calls++
	if idx < len(s.script) {
		return s.script[idx]
	}
	if len(s.script) > 0 {
		return s.script[len(s.script)-1]
	}
	return nil
}

func (s *scriptedSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	errBusy     = &textproto.Error{Code: 451, Msg: "try again later"}
	errNoMailbx = &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
)

func newTestDispatcher(t *testing.T, sender mail.Sender, opts DispatcherOptions) (*DeliveryDispatcher, repository.Repositories) {
	t.Helper()
	repos := memory.NewStore().Repos()
	err := repos.Settings.SaveMailSettings(context.Background(), &domain.MailSettings{
		Host: "smtp.example.com", Port: 587, DefaultSender: "dof@example.com",
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	d := NewDeliveryDispatcher(DispatcherDependencies{
		Deliveries: repos.Deliveries,
		Settings:   repos.Settings,
		Sender:     sender,
		Events:     events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
	}, opts)
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d, repos
}

func waitForTerminal(t *testing.T, repos repository.Repositories, id string) *domain.DeliveryRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := repos.Deliveries.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get delivery: %v", err)
		}
		if record.Status.IsTerminal() {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("delivery %s never reached a terminal status", id)
	return nil
}

func TestDispatcherOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		script      []error
		maxRetries  int
		wantStatus  domain.DeliveryStatus
		wantRetries int
		wantCalls   int
	}{
		{"sent first try", nil, 3, domain.DeliveryStatusSent, 0, 1},
		{"transient then sent", []error{errBusy, nil}, 3, domain.DeliveryStatusSent, 1, 2},
		{"transient exhausts retries", []error{errBusy}, 3, domain.DeliveryStatusFailed, 3, 4},
		{"permanent fails immediately", []error{errNoMailbx}, 3, domain.DeliveryStatusFailed, 0, 1},
		{"no retries configured", []error{errBusy}, 0, domain.DeliveryStatusFailed, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &scriptedSender{script: tc.script}
			d, repos := newTestDispatcher(t, sender, DispatcherOptions{Workers: 2, QueueSize: 8, MaxRetries: tc.maxRetries})
			ctx := context.Background()
			d.Start(ctx)
			defer d.Stop(ctx)

			record, err := d.Send(ctx, []string{"a@example.com"}, "subject", "<p>x</p>", "x")
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if record.Status != domain.DeliveryStatusQueued {
				t.Fatalf("expected Queued on return, got %s", record.Status)
			}

			final := waitForTerminal(t, repos, record.ID)
			if final.Status != tc.wantStatus {
				t.Fatalf("expected %s, got %s (%s)", tc.wantStatus, final.Status, final.Error)
			}
			if final.RetryCount != tc.wantRetries {
				t.Fatalf("expected retry_count %d, got %d", tc.wantRetries, final.RetryCount)
			}
			if sender.Calls() != tc.wantCalls {
				t.Fatalf("expected %d attempts, got %d", tc.wantCalls, sender.Calls())
			}
			if final.Status == domain.DeliveryStatusFailed && final.Error == "" {
				t.Fatal("failed record must keep the last error")
			}
			if final.CompletedAt == nil {
				t.Fatal("expected completed_at on terminal record")
			}
		})
	}
}

func TestDispatcherQueueFullRecordsFailure(t *testing.T) {
	sender := &scriptedSender{}
	d, repos := newTestDispatcher(t, sender, DispatcherOptions{Workers: 1, QueueSize: 1})
	ctx := context.Background()

	first, err := d.Send(ctx, []string{"a@example.com"}, "one", "", "one")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := d.Send(ctx, []string{"b@example.com"}, "two", "", "two")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	stored, _ := repos.Deliveries.GetByID(ctx, second.ID)
	if stored.Status != domain.DeliveryStatusFailed || stored.Error != errQueueFull {
		t.Fatalf("expected overflow recorded as failed, got %+v", stored)
	}

	d.Start(ctx)
	defer d.Stop(ctx)
	if got := waitForTerminal(t, repos, first.ID); got.Status != domain.DeliveryStatusSent {
		t.Fatalf("expected queued delivery sent once workers start, got %s", got.Status)
	}
}

func TestDispatcherResend(t *testing.T) {
	sender := &scriptedSender{script: []error{errNoMailbx, nil}}
	d, repos := newTestDispatcher(t, sender, DispatcherOptions{Workers: 1, QueueSize: 4, MaxRetries: 2})
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	record, _ := d.Send(ctx, []string{"a@example.com"}, "s", "", "t")
	if got := waitForTerminal(t, repos, record.ID); got.Status != domain.DeliveryStatusFailed {
		t.Fatalf("expected failure, got %s", got.Status)
	}

	if _, err := d.Resend(ctx, record.ID); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if got := waitForTerminal(t, repos, record.ID); got.Status != domain.DeliveryStatusSent {
		t.Fatalf("expected resend to succeed, got %s", got.Status)
	}

	_, err := d.Resend(ctx, record.ID)
	var de *errorutil.DomainError
	if !errors.As(err, &de) || de.Code != "CONFLICT" {
		t.Fatalf("expected conflict resending a sent record, got %v", err)
	}
	if _, err := d.Resend(ctx, "missing"); !errorutil.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDispatcherReadsSettingsPerSend(t *testing.T) {
	sender := &scriptedSender{}
	d, repos := newTestDispatcher(t, sender, DispatcherOptions{Workers: 1, QueueSize: 4, FallbackSender: "fallback@example.com"})
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	first, _ := d.Send(ctx, []string{"a@example.com"}, "s", "", "t")
	waitForTerminal(t, repos, first.ID)

	if err := repos.Settings.SaveMailSettings(ctx, &domain.MailSettings{Host: "relay.example.com", Port: 465, UseSSL: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, _ := d.Send(ctx, []string{"a@example.com"}, "s", "", "t")
	waitForTerminal(t, repos, second.ID)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.settings) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.settings))
	}
	if sender.settings[0].Host != "smtp.example.com" || sender.settings[1].Host != "relay.example.com" {
		t.Fatalf("settings not reloaded: %+v", sender.settings)
	}
	if sender.settings[1].DefaultSender != "fallback@example.com" {
		t.Fatalf("expected fallback sender, got %q", sender.settings[1].DefaultSender)
	}
}

func TestDispatcherAfterStop(t *testing.T) {
	d, repos := newTestDispatcher(t, &scriptedSender{}, DispatcherOptions{Workers: 1, QueueSize: 4})
	ctx := context.Background()
	d.Start(ctx)
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	record, err := d.Send(ctx, []string{"a@example.com"}, "s", "", "t")
	if err != nil {
		t.Fatalf("send after stop must not error: %v", err)
	}
	stored, _ := repos.Deliveries.GetByID(ctx, record.ID)
	if stored.Status != domain.DeliveryStatusFailed || stored.Error != errDispatcherStopped {
		t.Fatalf("expected stopped failure, got %+v", stored)
	}
}

func TestNormalizeRecipients(t *testing.T) {
	got := normalizeRecipients([]string{" A@example.com", "a@example.com", "", "b@example.com"})
	if len(got) != 2 || got[0] != "A@example.com" || got[1] != "b@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
}
