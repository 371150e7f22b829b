package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/propchain/upkeep/models"
)

// ErrNotFound is returned when no active row matches a lookup
var ErrNotFound = errors.New("record not found")

// UserRepository is the Credential Store for people
type UserRepository interface {
	// FindActiveByEmail matches the address case-insensitively and returns the
	// user joined with its earliest active membership, organization and role.
	FindActiveByEmail(ctx context.Context, email string) (*models.UserRecord, error)

	// FindActiveByID is FindActiveByEmail keyed by user id
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.UserRecord, error)

	// UpdateLastLogin stamps a successful login
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// OrganizationRepository answers organization membership questions
type OrganizationRepository interface {
	// FindAccessible returns the organization only when it is active and the
	// user holds an active membership in it.
	FindAccessible(ctx context.Context, orgID, userID uuid.UUID) (*models.Organization, error)
}

// APITokenRepository looks up machine credentials
type APITokenRepository interface {
	// FindActiveByHash returns an active, unexpired token of an active organization
	FindActiveByHash(ctx context.Context, tokenHash string) (*models.APIToken, error)

	// Touch records that the token was just used
	Touch(ctx context.Context, id uuid.UUID) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users         UserRepository
	Organizations OrganizationRepository
	APITokens     APITokenRepository
}
