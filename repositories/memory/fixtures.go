// Package memory is an in-process Credential Store seeded with the demo
// accounts served by the mock authentication service.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every fixture account
const DemoPassword = "password123"

var (
	AcmeOrgID       = uuid.MustParse("660e8400-e29b-41d4-a716-446655440000")
	CityLivingOrgID = uuid.MustParse("660e8400-e29b-41d4-a716-446655440002")
)

// FixtureUser describes one seeded account
type FixtureUser struct {
	ID          uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	OrgID       uuid.UUID
	Role        string
	DisplayName string
	Permissions []string
	Inactive    bool
}

// DefaultOrganizations are the tenants the fixture users belong to
func DefaultOrganizations() []models.Organization {
	return []models.Organization{
		{ID: AcmeOrgID, Name: "Acme Property Management", Slug: "acme-property"},
		{ID: CityLivingOrgID, Name: "City Living Properties", Slug: "city-living"},
	}
}

// DefaultUsers are the five demo accounts
func DefaultUsers() []FixtureUser {
	return []FixtureUser{
		{
			ID:          uuid.MustParse("770e8400-e29b-41d4-a716-446655440000"),
			Email:       "admin@acme-property.com",
			FirstName:   "Sarah",
			LastName:    "Johnson",
			OrgID:       AcmeOrgID,
			Role:        models.RoleOrgAdmin,
			DisplayName: "Organization Admin",
			Permissions: []string{"org.*"},
		},
		{
			ID:          uuid.MustParse("770e8400-e29b-41d4-a716-446655440001"),
			Email:       "manager@acme-property.com",
			FirstName:   "James",
			LastName:    "Smith",
			OrgID:       AcmeOrgID,
			Role:        models.RolePropertyManager,
			DisplayName: "Property Manager",
			Permissions: []string{"property.*", "work_log.*", "document.*"},
		},
		{
			ID:          uuid.MustParse("770e8400-e29b-41d4-a716-446655440002"),
			Email:       "contractor1@example.com",
			FirstName:   "Mike",
			LastName:    "Wilson",
			OrgID:       AcmeOrgID,
			Role:        models.RoleContractor,
			DisplayName: "Contractor",
			Permissions: []string{"work_log.view", "work_log.update", "document.create"},
		},
		{
			ID:          uuid.MustParse("770e8400-e29b-41d4-a716-446655440006"),
			Email:       "tenant@example.com",
			FirstName:   "John",
			LastName:    "Miller",
			OrgID:       CityLivingOrgID,
			Role:        models.RoleTenant,
			DisplayName: "Tenant",
			Permissions: []string{"property.view", "work_log.view"},
		},
		{
			ID:          uuid.MustParse("770e8400-e29b-41d4-a716-446655440007"),
			Email:       "auditor@compliance.com",
			FirstName:   "Rachel",
			LastName:    "Green",
			OrgID:       AcmeOrgID,
			Role:        models.RoleAuditor,
			DisplayName: "Auditor",
			Permissions: []string{"*.view", "audit.*"},
		},
	}
}

// Options controls fixture seeding
type Options struct {
	// BcryptCost defaults to bcrypt.DefaultCost
	BcryptCost    int
	Users         []FixtureUser
	Organizations []models.Organization
	Now           func() time.Time
}

// Store implements the user and organization repositories over fixtures.
// Every user has exactly one membership.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*models.UserRecord
	byEmail map[string]uuid.UUID
	orgs    map[uuid.UUID]models.Organization
	order   []uuid.UUID
}

var (
	_ repositories.UserRepository         = (*Store)(nil)
	_ repositories.OrganizationRepository = (*Store)(nil)
)

// NewStore hashes DemoPassword once and seeds every user with it
func NewStore(opts Options) (*Store, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Users == nil {
		opts.Users = DefaultUsers()
	}
	if opts.Organizations == nil {
		opts.Organizations = DefaultOrganizations()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash fixture password: %w", err)
	}

	s := &Store{
		users:   make(map[uuid.UUID]*models.UserRecord, len(opts.Users)),
		byEmail: make(map[string]uuid.UUID, len(opts.Users)),
		orgs:    make(map[uuid.UUID]models.Organization, len(opts.Organizations)),
	}
	for _, org := range opts.Organizations {
		s.orgs[org.ID] = org
	}

	created := opts.Now().UTC()
	for _, fu := range opts.Users {
		org, ok := s.orgs[fu.OrgID]
		if !ok {
			return nil, fmt.Errorf("fixture user %s references unknown organization %s", fu.Email, fu.OrgID)
		}
		s.users[fu.ID] = &models.UserRecord{
			ID:               fu.ID,
			Email:            fu.Email,
			PasswordHash:     string(hash),
			FirstName:        fu.FirstName,
			LastName:         fu.LastName,
			IsActive:         !fu.Inactive,
			CreatedAt:        created,
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
			OrganizationSlug: org.Slug,
			Role:             fu.Role,
			RoleDisplayName:  fu.DisplayName,
			Permissions:      append([]string{}, fu.Permissions...),
		}
		s.byEmail[models.NormalizeEmail(fu.Email)] = fu.ID
		s.order = append(s.order, fu.ID)
	}

	return s, nil
}

// FindActiveByEmail returns a copy of the matching active user
func (s *Store) FindActiveByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return s.activeCopy(id)
}

// FindActiveByID returns a copy of the matching active user
func (s *Store) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCopy(id)
}

// UpdateLastLogin stamps the fixture record
func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	at = at.UTC()
	u.LastLoginAt = &at
	return nil
}

// FindAccessible succeeds only for the user's own organization
func (s *Store) FindAccessible(ctx context.Context, orgID, userID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || !u.IsActive || u.OrganizationID != orgID {
		return nil, repositories.ErrNotFound
	}
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &org, nil
}

// Users lists active users in seeding order
func (s *Store) Users() []*models.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.UserRecord, 0, len(s.order))
	for _, id := range s.order {
		if u, err := s.activeCopy(id); err == nil {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) activeCopy(id uuid.UUID) (*models.UserRecord, error) {
	u, ok := s.users[id]
	if !ok || !u.IsActive {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	cp.Permissions = append([]string{}, u.Permissions...)
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		cp.LastLoginAt = &at
	}
	return &cp, nil
}
