package models

import (
	"time"

	"github.com/google/uuid"
)

// APIToken is an organization-scoped machine credential. Only the SHA-256
// hash of the key is stored.
type APIToken struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	TokenHash        string     `db:"token_hash"`
	OrganizationID   uuid.UUID  `db:"organization_id"`
	OrganizationName string     `db:"organization_name"`
	OrganizationSlug string     `db:"organization_slug"`
	Permissions      []string   `db:"permissions"`
	ExpiresAt        *time.Time `db:"expires_at"`
	LastUsedAt       *time.Time `db:"last_used_at"`
}

// TableName returns the table name for the APIToken model
func (APIToken) TableName() string {
	return "api_tokens"
}

// IsExpired reports whether the token has an expiry at or before now
func (t *APIToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Principal builds the identity an API key authenticates as
func (t *APIToken) Principal() *Principal {
	id := t.ID
	p := &Principal{
		UserID:           t.ID,
		Email:            "api-token:" + t.Name,
		FirstName:        t.Name,
		OrganizationID:   t.OrganizationID,
		OrganizationName: t.OrganizationName,
		OrganizationSlug: t.OrganizationSlug,
		Role:             "api_token",
		Permissions:      append([]string{}, t.Permissions...),
		IsActive:         true,
		APITokenID:       &id,
	}
	return p
}
