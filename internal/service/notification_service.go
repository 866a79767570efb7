package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/peer-review-service/internal/events"
)

// NotificationService forwards account events to the mail relay.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher events.Publisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventVerificationRequested, n.forward)
	n.dispatcher.Subscribe(events.EventIdentityDeleted, n.forward)
	n.dispatcher.Subscribe(events.EventReviewCreated, n.logReviewEvent)
	n.dispatcher.Subscribe(events.EventReviewUpdated, n.logReviewEvent)
	n.dispatcher.Subscribe(events.EventReviewDeleted, n.logReviewEvent)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("subject_id", event.SubjectID))
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, event)
}

func (n *NotificationService) logReviewEvent(_ context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type),
		zap.String("review_id", event.SubjectID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}
