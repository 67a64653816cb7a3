package domain

// Participant is implemented by every account type that can take part in a
// ticket conversation.
type Participant interface {
	SubjectID() string
	Role() SubjectType
	DisplayName() string
	ContactEmail() string
	CompanyRef() *string
}

// Identity is the resolved, immutable view of an authenticated caller.
type Identity struct {
	UserID      string      `json:"id"`
	Role        SubjectType `json:"role"`
	DisplayName string      `json:"name"`
	Email       string      `json:"email"`
	CompanyID   *string     `json:"companyId,omitempty"`
}

// IdentityOf projects a participant onto an Identity.
func IdentityOf(p Participant) Identity {
	return Identity{
		UserID:      p.SubjectID(),
		Role:        p.Role(),
		DisplayName: p.DisplayName(),
		Email:       p.ContactEmail(),
		CompanyID:   p.CompanyRef(),
	}
}

// IsSuperAdmin reports whether the identity carries the operator role.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == SubjectTypeSuperAdmin
}
