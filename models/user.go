package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role names seeded in the roles table
const (
	RoleOrgAdmin        = "org_admin"
	RolePropertyManager = "property_manager"
	RoleContractor      = "contractor"
	RoleTenant          = "tenant"
	RoleAuditor         = "auditor"
)

// UserRecord is a user joined with its earliest active membership, the
// membership's organization and role. Credential stores return nothing
// for users without such a membership.
type UserRecord struct {
	ID               uuid.UUID       `db:"id"`
	Email            string          `db:"email"`
	PasswordHash     string          `db:"password_hash"`
	FirstName        string          `db:"first_name"`
	LastName         string          `db:"last_name"`
	Phone            *string         `db:"phone"`
	Preferences      json.RawMessage `db:"preferences"`
	IsActive         bool            `db:"is_active"`
	LastLoginAt      *time.Time      `db:"last_login_at"`
	CreatedAt        time.Time       `db:"created_at"`
	OrganizationID   uuid.UUID       `db:"organization_id"`
	OrganizationName string          `db:"organization_name"`
	OrganizationSlug string          `db:"organization_slug"`
	Role             string          `db:"role_name"`
	RoleDisplayName  string          `db:"role_display_name"`
	Permissions      []string        `db:"permissions"`
}

// TableName returns the table name for the user record
func (UserRecord) TableName() string {
	return "users"
}

// NormalizeEmail lower-cases and trims an address for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal snapshots the identity the Auth Gate attaches to a request
func (u *UserRecord) Principal() *Principal {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &Principal{
		UserID:           u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		OrganizationID:   u.OrganizationID,
		OrganizationName: u.OrganizationName,
		OrganizationSlug: u.OrganizationSlug,
		Role:             u.Role,
		Permissions:      perms,
		IsActive:         u.IsActive,
	}
}

// UserProfile is the user object returned by the auth endpoints
type UserProfile struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	Phone            *string         `json:"phone,omitempty"`
	OrganizationID   uuid.UUID       `json:"organizationId"`
	OrganizationName string          `json:"organizationName"`
	OrganizationSlug string          `json:"organizationSlug,omitempty"`
	Role             string          `json:"role"`
	RoleDisplayName  string          `json:"roleDisplayName,omitempty"`
	Permissions      []string        `json:"permissions"`
	Preferences      json.RawMessage `json:"preferences,omitempty"`
	LastLoginAt      *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt        *time.Time      `json:"createdAt,omitempty"`
	SessionID        string          `json:"sessionId,omitempty"`
}

// Profile renders the record for API responses. Password hashes never leave the record.
func (u *UserRecord) Profile() *UserProfile {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	prefs := u.Preferences
	if len(prefs) == 0 {
		prefs = json.RawMessage(`{}`)
	}
	p := &UserProfile{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		OrganizationID:   u.OrganizationID,
		OrganizationName: u.OrganizationName,
		OrganizationSlug: u.OrganizationSlug,
		Role:             u.Role,
		RoleDisplayName:  u.RoleDisplayName,
		Permissions:      perms,
		Preferences:      prefs,
		LastLoginAt:      u.LastLoginAt,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		p.CreatedAt = &created
	}
	return p
}
