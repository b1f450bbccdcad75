package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/events"
	"github.com/spec-kit/dof-service/internal/repository"
	apperrors "github.com/spec-kit/dof-service/pkg/util/errorutil"
)

const unreadKeyPrefix = "dof:unread:"

// MailQueue accepts outbound email for asynchronous delivery.
type MailQueue interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody, textBody string) (*domain.DeliveryRecord, error)
}

// NotificationService serves the in-app inbox and hands case emails to the
// delivery queue once the owning transaction has committed.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	queue      MailQueue
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Queue      MailQueue
	// Cache is optional; unread counts go straight to the store without it.
	Cache    *redis.Client
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NotificationService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		queue:      deps.Queue,
		cache:      deps.Cache,
		cacheTTL:   ttl,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventCaseNotified, n.handleCaseNotified)
	n.dispatcher.Subscribe(events.EventDeliveryCompleted, n.handleDeliveryCompleted)
}

// List returns the user's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	return n.store.Repos().Notifications.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns how many notifications the user has not read yet.
func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if n.cache != nil {
		cached, err := n.cache.Get(ctx, unreadKeyPrefix+userID).Result()
		switch {
		case err == nil:
			if count, convErr := strconv.Atoi(cached); convErr == nil {
				return count, nil
			}
		case !errors.Is(err, redis.Nil):
			n.logger.Warn("unread cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	count, err := n.store.Repos().Notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n.cache != nil {
		if err := n.cache.Set(ctx, unreadKeyPrefix+userID, count, n.cacheTTL).Err(); err != nil {
			n.logger.Warn("unread cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return n.setRead(ctx, userID, notificationID, true)
}

// MarkUnread flips one of the user's notifications back to unread.
func (n *NotificationService) MarkUnread(ctx context.Context, userID, notificationID string) error {
	return n.setRead(ctx, userID, notificationID, false)
}

// MarkAllRead marks every unread notification of the user and returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	changed, err := n.store.Repos().Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	n.invalidate(ctx, userID)
	return changed, nil
}

func (n *NotificationService) setRead(ctx context.Context, userID, notificationID string, read bool) error {
	if err := n.store.Repos().Notifications.SetRead(ctx, notificationID, userID, read); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("notification", map[string]any{"id": notificationID})
		}
		return err
	}
	n.invalidate(ctx, userID)
	return nil
}

func (n *NotificationService) invalidate(ctx context.Context, userIDs ...string) {
	if n.cache == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, unreadKeyPrefix+id)
	}
	if err := n.cache.Del(ctx, keys...).Err(); err != nil {
		n.logger.Warn("unread cache invalidation failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}

func (n *NotificationService) handleCaseNotified(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CaseNotifiedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.invalidate(ctx, payload.Recipients...)

	if n.queue == nil {
		return nil
	}
	var errs []error
	for _, m := range payload.Mails {
		record, err := n.queue.Send(ctx, []string{m.Email}, m.Subject, m.HTMLBody, m.TextBody)
		if err != nil {
			errs = append(errs, fmt.Errorf("queue mail for %s: %w", m.UserID, err))
			continue
		}
		n.logger.Debug("case mail queued",
			zap.String("case_id", event.CaseID),
			zap.String("user_id", m.UserID),
			zap.String("delivery_id", record.ID),
			zap.String("status", string(record.Status)))
	}
	return errors.Join(errs...)
}

func (n *NotificationService) handleDeliveryCompleted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DeliveryCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.Status == domain.DeliveryStatusFailed {
		n.logger.Warn("delivery failed",
			zap.String("delivery_id", payload.DeliveryID),
			zap.Int("retry_count", payload.RetryCount),
			zap.String("error", payload.Error))
	}
	return nil
}
