package chat

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// URLResolver computes public attachment URLs at read time.
type URLResolver interface {
	WithURLs(attachments []domain.Attachment) []domain.Attachment
}

// MessageStore persists chat messages and decorates them for delivery.
type MessageStore struct {
	repo repository.ChatMessageRepository
	urls URLResolver
}

// NewMessageStore constructs the store.
func NewMessageStore(repo repository.ChatMessageRepository, urls URLResolver) *MessageStore {
	return &MessageStore{repo: repo, urls: urls}
}

// Append persists a message with the sender's display fields resolved.
func (s *MessageStore) Append(ctx context.Context, ticketID string, sender domain.Identity, text string, attachments []domain.Attachment) (*domain.ChatMessage, error) {
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	msg := &domain.ChatMessage{
		TicketID:    ticketID,
		Sender:      domain.SenderFromIdentity(sender),
		Text:        text,
		Attachments: attachments,
	}
	if err := s.repo.Append(ctx, msg); err != nil {
		return nil, err
	}
	msg.Attachments = s.urls.WithURLs(msg.Attachments)
	return msg, nil
}

// History returns every message of the ticket, oldest first.
func (s *MessageStore) History(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	messages, err := s.repo.History(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.decorate(messages), nil
}

// Page returns messages [offset, offset+limit) of the ascending history
// and the total count.
func (s *MessageStore) Page(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, int, error) {
	messages, total, err := s.repo.Page(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.decorate(messages), total, nil
}

func (s *MessageStore) decorate(messages []domain.ChatMessage) []domain.ChatMessage {
	for i := range messages {
		messages[i].Attachments = s.urls.WithURLs(messages[i].Attachments)
	}
	return messages
}
