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

// APITokenRepository implements the repositories.APITokenRepository interface
type APITokenRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAPITokenRepository creates a new API token repository
func NewAPITokenRepository(db *DB, logger *zap.Logger) repositories.APITokenRepository {
	return &APITokenRepository{
		db:     db,
		logger: logger,
	}
}

// FindActiveByHash retrieves a usable token by the SHA-256 hex of its key
func (r *APITokenRepository) FindActiveByHash(ctx context.Context, tokenHash string) (*models.APIToken, error) {
	query := `
		SELECT t.id, t.name, t.token_hash, t.organization_id, o.name, o.slug,
			t.permissions, t.expires_at, t.last_used_at
		FROM api_tokens t
		JOIN organizations o ON t.organization_id = o.id
		WHERE t.token_hash = $1
			AND t.is_active = true
			AND (t.expires_at IS NULL OR t.expires_at > CURRENT_TIMESTAMP)
			AND o.is_active = true
	`

	var (
		token       models.APIToken
		permissions []byte
		expiresAt   sql.NullTime
		lastUsedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.Name,
		&token.TokenHash,
		&token.OrganizationID,
		&token.OrganizationName,
		&token.OrganizationSlug,
		&permissions,
		&expiresAt,
		&lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}

	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}
	if token.Permissions, err = decodePermissions(permissions); err != nil {
		return nil, err
	}
	return &token, nil
}

// Touch updates last_used_at
func (r *APITokenRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE api_tokens SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch api token: %w", err)
	}
	return nil
}
