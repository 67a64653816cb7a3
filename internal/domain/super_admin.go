package domain

import "time"

// SuperAdmin is a platform operator with unrestricted ticket access.
type SuperAdmin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *SuperAdmin) DisplayName() string  { return a.Name }
func (a *SuperAdmin) ContactEmail() string { return a.Email }
func (a *SuperAdmin) Role() SubjectType    { return SubjectTypeSuperAdmin }
func (a *SuperAdmin) SubjectID() string    { return a.ID }
func (a *SuperAdmin) CompanyRef() *string  { return nil }
