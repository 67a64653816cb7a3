package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// EventSubscriber is anything that hooks handlers onto the dispatcher.
type EventSubscriber interface {
	RegisterHandlers(dispatcher events.Dispatcher)
}

// Maintainer runs periodic housekeeping until its context ends.
type Maintainer interface {
	Run(ctx context.Context)
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartRealtimeWorker subscribes the chat hub to domain events so ticket
// changes reach connected sockets.
func StartRealtimeWorker(dispatcher events.Dispatcher, subscriber EventSubscriber) {
	if dispatcher == nil || subscriber == nil {
		return
	}
	subscriber.RegisterHandlers(dispatcher)
}

// RunMaintenance blocks running the maintainer's sweeps until ctx is done.
func RunMaintenance(ctx context.Context, m Maintainer, logger *zap.Logger) error {
	if m == nil {
		return nil
	}
	logger.Info("chat maintenance started")
	m.Run(ctx)
	logger.Info("chat maintenance stopped")
	return nil
}
