package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/propchain/upkeep/models"
)

// Context key type to avoid collisions
type contextKey string

const authContextKey contextKey = "auth_context"

// AuthContext is what the auth gates attach to a request. It is stored by
// value; gates derive a new one rather than mutating it.
type AuthContext struct {
	Principal      *models.Principal
	OrganizationID uuid.UUID
	Organization   *models.Organization
}

// WithOrganization returns a copy scoped to org
func (a AuthContext) WithOrganization(org *models.Organization) AuthContext {
	o := *org
	a.Organization = &o
	a.OrganizationID = org.ID
	return a
}

// WithAuthContext attaches an AuthContext. The principal is copied so later
// changes by the caller do not leak into the request.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	ac.Principal = ac.Principal.Clone()
	return context.WithValue(ctx, authContextKey, ac)
}

// GetAuthContext retrieves the AuthContext, or nil when the request is unauthenticated
func GetAuthContext(ctx context.Context) *AuthContext {
	if val := ctx.Value(authContextKey); val != nil {
		if ac, ok := val.(AuthContext); ok {
			return &ac
		}
	}
	return nil
}

// GetPrincipalFromContext retrieves the authenticated principal
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	if ac := GetAuthContext(ctx); ac != nil {
		return ac.Principal
	}
	return nil
}

// GetOrgIDFromContext retrieves the organization the request acts in
func GetOrgIDFromContext(ctx context.Context) uuid.UUID {
	if ac := GetAuthContext(ctx); ac != nil {
		return ac.OrganizationID
	}
	return uuid.Nil
}
