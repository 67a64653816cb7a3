package domain

import "time"

// Company groups clients and their tickets.
type Company struct {
	ID          string
	Name        string
	Email       string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
