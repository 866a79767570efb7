package worker

import (
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/observability"
	"github.com/spec-kit/peer-review-service/internal/service"
)

// StartNotificationWorker registers notification and metrics subscribers on
// dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, metrics *observability.Metrics) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if metrics != nil && dispatcher != nil {
		metrics.Subscribe(dispatcher)
	}
}
