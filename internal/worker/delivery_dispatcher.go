package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/mail"
	"github.com/spec-kit/dof-service/internal/observability"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
	"github.com/spec-kit/dof-service/pkg/util/ids"
)

const (
	errQueueFull         = "delivery queue full"
	errDispatcherStopped = "delivery dispatcher stopped"
)

// DispatcherOptions sizes the pool and the retry policy.
type DispatcherOptions struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	RatePerSecond float64
	Burst         int
	// FallbackSender fills MailSettings.DefaultSender when the stored settings leave it empty.
	FallbackSender string
}

// DispatcherDependencies wires the dispatcher.
type DispatcherDependencies struct {
	Deliveries repository.DeliveryRepository
	Settings   repository.SettingsRepository
	Sender     mail.Sender
	Events     events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// DeliveryDispatcher sends email on a bounded worker pool. Every send is
// recorded in the delivery ledger before any network call and failures stay
// in the ledger; they are never returned to the caller that queued the mail.
type DeliveryDispatcher struct {
	deliveries repository.DeliveryRepository
	settings   repository.SettingsRepository
	sender     mail.Sender
	events     events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	limiter    *rate.Limiter
	opts       DispatcherOptions

	jobs    chan string
	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDeliveryDispatcher builds a dispatcher. Call Start to launch workers.
func NewDeliveryDispatcher(deps DispatcherDependencies, opts DispatcherOptions) *DeliveryDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryDispatcher{
		deliveries: deps.Deliveries,
		settings:   deps.Settings,
		sender:     deps.Sender,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, opts.Burst),
		opts:       opts,
		jobs:       make(chan string, opts.QueueSize),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Start launches the workers. It is a no-op after the first call.
func (d *DeliveryDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.run(workerCtx, i)
	}
	d.logger.Info("delivery dispatcher started", zap.Int("workers", d.opts.Workers), zap.Int("queue_size", d.opts.QueueSize))
}

// Stop refuses new work, lets workers drain the queue, and cancels in-flight
// sends once ctx expires.
func (d *DeliveryDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.jobs)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
	}
	if cancel != nil {
		cancel()
	}
	d.logger.Info("delivery dispatcher stopped")
	return nil
}

// Send records a Queued delivery and hands it to the pool without blocking.
// The returned error covers only the ledger write; delivery outcomes are
// recorded on the record.
func (d *DeliveryDispatcher) Send(ctx context.Context, recipients []string, subject, htmlBody, textBody string) (*domain.DeliveryRecord, error) {
	record := &domain.DeliveryRecord{
		ID:         ids.NewAt(d.now()),
		Subject:    subject,
		Recipients: normalizeRecipients(recipients),
		HTMLBody:   htmlBody,
		TextBody:   textBody,
		Status:     domain.DeliveryStatusQueued,
	}
	if err := d.deliveries.Create(ctx, record); err != nil {
		return nil, err
	}
	d.enqueue(ctx, record)
	return record, nil
}

// Resend requeues a Failed delivery with a fresh retry budget.
func (d *DeliveryDispatcher) Resend(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	record, err := d.deliveries.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("delivery", map[string]any{"id": id})
		}
		return nil, err
	}
	if record.Status != domain.DeliveryStatusFailed {
		return nil, apperrors.NewConflict("only failed deliveries can be resent", map[string]any{"status": string(record.Status)})
	}
	record.Status = domain.DeliveryStatusQueued
	record.Error = ""
	record.RetryCount = 0
	record.CompletedAt = nil
	if err := d.deliveries.Update(ctx, record); err != nil {
		return nil, err
	}
	d.enqueue(ctx, record)
	return record, nil
}

// QueueDepth returns the number of deliveries waiting for a worker.
func (d *DeliveryDispatcher) QueueDepth() int {
	return len(d.jobs)
}

func (d *DeliveryDispatcher) enqueue(ctx context.Context, record *domain.DeliveryRecord) {
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		d.fail(ctx, record, errDispatcherStopped)
		return
	}
	select {
	case d.jobs <- record.ID:
		d.mu.RUnlock()
		d.metrics.SetQueueDepth(len(d.jobs))
	default:
		d.mu.RUnlock()
		d.fail(ctx, record, errQueueFull)
	}
}

func (d *DeliveryDispatcher) run(ctx context.Context, worker int) {
	defer d.wg.Done()
	for id := range d.jobs {
		d.metrics.SetQueueDepth(len(d.jobs))
		d.process(ctx, id)
	}
	d.logger.Debug("delivery worker exiting", zap.Int("worker", worker))
}

func (d *DeliveryDispatcher) process(ctx context.Context, id string) {
	record, err := d.deliveries.GetByID(ctx, id)
	if err != nil {
		d.logger.Error("load delivery", zap.String("delivery_id", id), zap.Error(err))
		return
	}
	if record.Status.IsTerminal() {
		return
	}

	email := mail.Email{
		To:       record.Recipients,
		Subject:  record.Subject,
		TextBody: record.TextBody,
		HTMLBody: record.HTMLBody,
	}

	for attempt := 0; ; attempt++ {
		record.RetryCount = attempt
		if err := d.limiter.Wait(ctx); err != nil {
			d.fail(ctx, record, err.Error())
			return
		}

		sendErr := d.attempt(ctx, email)
		if sendErr == nil {
			d.finish(ctx, record, domain.DeliveryStatusSent, "")
			return
		}
		if !mail.IsTransient(sendErr) || attempt >= d.opts.MaxRetries {
			d.logger.Warn("delivery failed",
				zap.String("delivery_id", record.ID),
				zap.Int("retry_count", attempt),
				zap.Bool("transient", mail.IsTransient(sendErr)),
				zap.Error(sendErr))
			d.fail(ctx, record, sendErr.Error())
			return
		}

		d.logger.Info("delivery attempt failed; retrying",
			zap.String("delivery_id", record.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(sendErr))
		record.RetryCount = attempt + 1
		record.Error = sendErr.Error()
		if err := d.deliveries.Update(ctx, record); err != nil {
			d.logger.Error("record retry", zap.String("delivery_id", record.ID), zap.Error(err))
		}
		if err := d.sleep(ctx, d.opts.RetryDelay); err != nil {
			d.fail(ctx, record, sendErr.Error())
			return
		}
	}
}

// attempt reads the settings fresh so edits apply to the next send.
func (d *DeliveryDispatcher) attempt(ctx context.Context, email mail.Email) error {
	settings, err := d.settings.GetMailSettings(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(settings.DefaultSender) == "" {
		settings.DefaultSender = d.opts.FallbackSender
	}
	return d.sender.Send(ctx, settings, email)
}

func (d *DeliveryDispatcher) fail(ctx context.Context, record *domain.DeliveryRecord, reason string) {
	d.finish(ctx, record, domain.DeliveryStatusFailed, reason)
}

func (d *DeliveryDispatcher) finish(ctx context.Context, record *domain.DeliveryRecord, status domain.DeliveryStatus, reason string) {
	completed := d.now()
	record.Status = status
	record.Error = reason
	record.CompletedAt = &completed

	// the ledger write must survive a cancelled worker context
	writeCtx := context.WithoutCancel(ctx)
	if err := d.deliveries.Update(writeCtx, record); err != nil {
		d.logger.Error("record delivery outcome",
			zap.String("delivery_id", record.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
	d.metrics.RecordDelivery(string(status))

	if d.events == nil {
		return
	}
	err := d.events.Publish(writeCtx, events.Event{
		ID:        record.ID,
		Type:      events.EventDeliveryCompleted,
		Timestamp: completed,
		Payload: events.DeliveryCompletedPayload{
			DeliveryID: record.ID,
			Status:     status,
			RetryCount: record.RetryCount,
			Error:      reason,
		},
	})
	if err != nil {
		d.logger.Warn("delivery completion handlers failed", zap.String("delivery_id", record.ID), zap.Error(err))
	}
}

func normalizeRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
