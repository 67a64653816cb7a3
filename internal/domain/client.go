package domain

import "time"

// ClientStatus represents the approval lifecycle of a client account.
type ClientStatus string

const (
	ClientStatusPending  ClientStatus = "pending"
	ClientStatusApproved ClientStatus = "approved"
	ClientStatusRejected ClientStatus = "rejected"
)

// Client is an end customer belonging to a company.
type Client struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CompanyID    string
	Status       ClientStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Approved reports whether the client may sign in.
func (c *Client) Approved() bool {
	return c != nil && c.Status == ClientStatusApproved
}

func (c *Client) DisplayName() string  { return c.Name }
func (c *Client) ContactEmail() string { return c.Email }
func (c *Client) Role() SubjectType    { return SubjectTypeClient }
func (c *Client) SubjectID() string    { return c.ID }

func (c *Client) CompanyRef() *string {
	if c.CompanyID == "" {
		return nil
	}
	id := c.CompanyID
	return &id
}
