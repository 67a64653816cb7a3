package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) error {
	if dispatcher == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return dispatcher.Publish(ctx, event)
}

func clientActor(clientID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeClient, UserID: clientID}
}

func adminActor(adminID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeSuperAdmin, UserID: adminID}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
