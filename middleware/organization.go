package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"github.com/propchain/upkeep/services"
)

const (
	// OrgIDParam is the route parameter naming an organization
	OrgIDParam = "orgId"
	// OrgIDField is the query parameter and JSON body field naming an organization
	OrgIDField = "organizationId"

	// maxInspectedBody bounds how much of a JSON body is read to find OrgIDField
	maxInspectedBody = 8 << 20
)

// OrganizationResolver decides which organization a request acts in and
// checks that the principal may act there
type OrganizationResolver struct {
	orgs         repositories.OrganizationRepository
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewOrganizationResolver creates a new OrganizationResolver
func NewOrganizationResolver(orgs repositories.OrganizationRepository, storeTimeout time.Duration, logger *zap.Logger) *OrganizationResolver {
	return &OrganizationResolver{
		orgs:         orgs,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Resolve picks the organization id from, in order, the route parameter,
// the query string, the JSON body and the principal's default organization.
// A JSON body is read and restored so handlers can still decode it.
func (o *OrganizationResolver) Resolve(r *http.Request, p *models.Principal) (string, error) {
	if id := chi.URLParam(r, OrgIDParam); id != "" {
		return id, nil
	}
	if id := r.URL.Query().Get(OrgIDField); id != "" {
		return id, nil
	}
	id, err := bodyOrganizationID(r)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	if p != nil && p.OrganizationID != uuid.Nil {
		return p.OrganizationID.String(), nil
	}
	return "", services.ErrOrgContextRequired
}

// Middleware resolves and verifies the organization, then scopes the
// AuthContext to it. Unauthenticated requests pass through untouched.
func (o *OrganizationResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ac := GetAuthContext(ctx)
		if ac == nil || ac.Principal == nil {
			next.ServeHTTP(w, r)
			return
		}

		rawID, err := o.Resolve(r, ac.Principal)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		org, err := o.verify(ctx, rawID, ac.Principal)
		if err != nil {
			if services.IsForbiddenError(err) {
				o.logger.Warn("organization access denied",
					zap.String("request_id", chimiddleware.GetReqID(ctx)),
					zap.String("user_id", ac.Principal.UserID.String()),
					zap.String("organization_id", rawID))
			} else {
				o.logger.Error("organization access check failed",
					zap.String("request_id", chimiddleware.GetReqID(ctx)),
					zap.String("organization_id", rawID),
					zap.Error(err))
			}
			writeServiceError(w, r, err)
			return
		}

		ctx = WithAuthContext(ctx, ac.WithOrganization(org))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (o *OrganizationResolver) verify(ctx context.Context, rawID string, p *models.Principal) (*models.Organization, error) {
	orgID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, services.ErrOrgAccessDenied
	}

	// API keys are bound to the organization that issued them
	if p.IsAPIToken() {
		if orgID != p.OrganizationID {
			return nil, services.ErrOrgAccessDenied
		}
		return &models.Organization{ID: p.OrganizationID, Name: p.OrganizationName, Slug: p.OrganizationSlug}, nil
	}

	ctx, cancel := withStoreTimeout(ctx, o.storeTimeout)
	defer cancel()

	org, err := o.orgs.FindAccessible(ctx, orgID, p.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrOrgAccessDenied
	}
	if err != nil {
		return nil, services.Internal(services.MsgOrgAccessUnavailable, err)
	}
	return org, nil
}

// replayBody serves the bytes already consumed followed by the unread rest
// of the original body, and closes the original
type replayBody struct {
	io.Reader
	io.Closer
}

// bodyOrganizationID reads the top-level organizationId of a JSON body.
// The body is restored in full for the handler. A field that is present but
// not a non-empty string is refused rather than ignored.
func bodyOrganizationID(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return "", nil
	}

	original := r.Body
	var seen bytes.Buffer
	dec := json.NewDecoder(io.TeeReader(io.LimitReader(original, maxInspectedBody+1), &seen))

	var raw json.RawMessage
	err := dec.Decode(&raw)
	r.Body = replayBody{Reader: io.MultiReader(&seen, original), Closer: original}

	if seen.Len() > maxInspectedBody {
		return "", services.TooLarge("Request body too large")
	}
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", services.BadRequest("Invalid JSON body")
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", services.BadRequest("Invalid JSON body")
	}
	value, ok := fields[OrgIDField]
	if !ok {
		return "", nil
	}

	var id string
	if err := json.Unmarshal(value, &id); err != nil || id == "" {
		return "", services.ErrOrgAccessDenied
	}
	return id, nil
}
