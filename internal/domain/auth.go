package domain

import "time"

// SubjectType differentiates client vs super-admin tokens.
type SubjectType string

const (
	SubjectTypeClient     SubjectType = "Client"
	SubjectTypeSuperAdmin SubjectType = "SuperAdmin"
)

// Valid reports whether the subject type is known.
func (s SubjectType) Valid() bool {
	return s == SubjectTypeClient || s == SubjectTypeSuperAdmin
}

// Token represents issued authentication token metadata.
type Token struct {
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
	IssuedAt  time.Time
}
