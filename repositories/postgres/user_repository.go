package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"go.uber.org/zap"
)

// selectActiveUser joins a user to its earliest active membership. Callers
// append the WHERE predicate on u.
const selectActiveUser = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone,
		u.preferences, u.is_active, u.last_login_at, u.created_at,
		uor.organization_id, o.name, o.slug, r.name, r.display_name, r.permissions
	FROM users u
	JOIN user_organization_roles uor ON u.id = uor.user_id
	JOIN organizations o ON uor.organization_id = o.id
	JOIN roles r ON uor.role_id = r.id
	WHERE u.is_active = true AND uor.is_active = true AND o.is_active = true
`

const earliestMembership = `
	ORDER BY uor.created_at ASC, uor.organization_id ASC
	LIMIT 1
`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// FindActiveByEmail retrieves an active user by email, ignoring case
func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	query := selectActiveUser + ` AND LOWER(u.email) = LOWER($1)` + earliestMembership

	user, err := scanUserRecord(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// FindActiveByID retrieves an active user by ID
func (r *UserRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	query := selectActiveUser + ` AND u.id = $1` + earliestMembership

	user, err := scanUserRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateLastLogin stamps last_login_at
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("last login updated", zap.String("user_id", id.String()))
	return nil
}

func scanUserRecord(row *sql.Row) (*models.UserRecord, error) {
	var (
		user        models.UserRecord
		phone       sql.NullString
		preferences []byte
		lastLogin   sql.NullTime
		displayName sql.NullString
		permissions []byte
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&preferences,
		&user.IsActive,
		&lastLogin,
		&user.CreatedAt,
		&user.OrganizationID,
		&user.OrganizationName,
		&user.OrganizationSlug,
		&user.Role,
		&displayName,
		&permissions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}

	if phone.Valid {
		user.Phone = &phone.String
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	user.RoleDisplayName = displayName.String
	if len(preferences) > 0 {
		user.Preferences = json.RawMessage(preferences)
	}
	if user.Permissions, err = decodePermissions(permissions); err != nil {
		return nil, err
	}
	return &user, nil
}

// decodePermissions reads a JSONB array column. NULL decodes to an empty set.
func decodePermissions(raw []byte) ([]string, error) {
	perms := []string{}
	if len(raw) == 0 {
		return perms, nil
	}
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}
