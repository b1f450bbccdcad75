package worker

import (
	"context"

	"github.com/spec-kit/dof-service/internal/service"
)

// StartNotificationWorker registers notification handlers and launches the
// delivery pool. Stop the dispatcher to drain it.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, dispatcher *DeliveryDispatcher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher != nil {
		dispatcher.Start(ctx)
	}
}
