package domain

import "time"

// Sender is the tagged reference to whoever wrote a chat message.
type Sender struct {
	ID        string      `json:"id"`
	Role      SubjectType `json:"role"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	CompanyID *string     `json:"companyId,omitempty"`
}

// SenderFromIdentity copies display fields from an identity.
func SenderFromIdentity(id Identity) Sender {
	return Sender{
		ID:        id.UserID,
		Role:      id.Role,
		Name:      id.DisplayName,
		Email:     id.Email,
		CompanyID: id.CompanyID,
	}
}

// Attachment is a stored file embedded in a chat message. URL is derived at
// read time and never persisted.
type Attachment struct {
	StoredName   string    `json:"storedName"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"size"`
	ContentPath  string    `json:"path"`
	UploadedAt   time.Time `json:"uploadedAt"`
	URL          string    `json:"url,omitempty"`
}

// ChatMessage is a persisted message in a ticket conversation.
type ChatMessage struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticketId"`
	Sender      Sender       `json:"sender"`
	Text        string       `json:"message"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}
