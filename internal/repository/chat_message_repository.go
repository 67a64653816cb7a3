package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ChatMessageRepository persists ticket conversation messages.
type ChatMessageRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	History(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
	Page(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, int, error)
}

type chatMessageRepository struct {
	pool *pgxpool.Pool
}

// NewChatMessageRepository creates repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

func (r *chatMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	stored := make([]domain.Attachment, len(attachments))
	for i, a := range attachments {
		a.URL = ""
		stored[i] = a
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	const query = `
        INSERT INTO chat_messages (ticket_id, sender_id, sender_role, body, attachments)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.Sender.ID,
		msg.Sender.Role,
		msg.Text,
		payload,
	).Scan(&msg.ID, &msg.CreatedAt)
}

const chatMessageSelect = `
        SELECT m.id, m.ticket_id, m.sender_id, m.sender_role,
               COALESCE(c.name, a.name, ''), COALESCE(c.email, a.email, ''), c.company_id,
               m.body, m.attachments, m.created_at
        FROM chat_messages m
        LEFT JOIN clients c ON m.sender_role = 'Client' AND c.id = m.sender_id
        LEFT JOIN super_admins a ON m.sender_role = 'SuperAdmin' AND a.id = m.sender_id
        WHERE m.ticket_id=$1
        ORDER BY m.created_at ASC, m.id ASC`

// History returns every message of a ticket, oldest first.
func (r *chatMessageRepository) History(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, chatMessageSelect, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChatMessages(rows)
}

// Page returns a slice of the ascending history starting at offset, together
// with the ticket's total message count.
func (r *chatMessageRepository) Page(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE ticket_id=$1`, ticketID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, chatMessageSelect+` LIMIT $2 OFFSET $3`, ticketID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := collectChatMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func collectChatMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	result := []domain.ChatMessage{}
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func scanChatMessage(row pgx.Row) (domain.ChatMessage, error) {
	var (
		msg         domain.ChatMessage
		companyID   *string
		attachments []byte
	)
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.Sender.ID,
		&msg.Sender.Role,
		&msg.Sender.Name,
		&msg.Sender.Email,
		&companyID,
		&msg.Text,
		&attachments,
		&msg.CreatedAt,
	); err != nil {
		return msg, err
	}
	msg.Sender.CompanyID = companyID
	msg.Attachments = []domain.Attachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return msg, fmt.Errorf("decode attachments: %w", err)
		}
	}
	return msg, nil
}
