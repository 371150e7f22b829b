package models

import (
	"github.com/google/uuid"
)

// Principal is an authenticated identity: a user, or an API token acting
// inside one organization.
type Principal struct {
	UserID           uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	OrganizationID   uuid.UUID  `json:"organizationId"`
	OrganizationName string     `json:"organizationName"`
	OrganizationSlug string     `json:"organizationSlug,omitempty"`
	Role             string     `json:"role"`
	Permissions      []string   `json:"permissions"`
	IsActive         bool       `json:"isActive"`
	APITokenID       *uuid.UUID `json:"apiTokenId,omitempty"`

	// SessionID is the session of the token that authenticated this request.
	// It is never cached.
	SessionID string `json:"-"`
}

// IsAPIToken reports whether the principal was authenticated with an API key
func (p *Principal) IsAPIToken() bool {
	return p.APITokenID != nil
}

// Clone returns a deep copy so cached snapshots are never shared
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Permissions = append(make([]string, 0, len(p.Permissions)), p.Permissions...)
	if p.APITokenID != nil {
		id := *p.APITokenID
		c.APITokenID = &id
	}
	return &c
}
