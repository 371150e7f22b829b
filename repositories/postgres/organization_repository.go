package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"go.uber.org/zap"
)

// OrganizationRepository implements the repositories.OrganizationRepository interface
type OrganizationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB, logger *zap.Logger) repositories.OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		logger: logger,
	}
}

// FindAccessible retrieves an organization the user is an active member of
func (r *OrganizationRepository) FindAccessible(ctx context.Context, orgID, userID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug
		FROM organizations o
		JOIN user_organization_roles uor ON o.id = uor.organization_id
		WHERE o.id = $1 AND uor.user_id = $2
			AND o.is_active = true AND uor.is_active = true
	`

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check organization access: %w", err)
	}

	return org, nil
}
