package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/middleware"
	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/utils"
)

// ResourceHandler serves the business collections. They carry no data yet;
// the routes exist so the auth, organization and permission gates guard
// real endpoints.
type ResourceHandler struct {
	logger *zap.Logger
}

// NewResourceHandler creates a new ResourceHandler
func NewResourceHandler(logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{logger: logger}
}

// List returns an empty collection under key, e.g. {"properties": []}
func (h *ResourceHandler) List(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("listing resource",
			zap.String("resource", key),
			zap.String("organization_id", middleware.GetOrgIDFromContext(r.Context()).String()))
		_ = utils.WriteOK(w, map[string]interface{}{key: []interface{}{}})
	}
}

// WorkSummary handles GET /api/v1/reports/work-summary
func (h *ResourceHandler) WorkSummary(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"summary": map[string]int{
			"totalJobs":     0,
			"completedJobs": 0,
			"pendingJobs":   0,
		},
	})
}

// ListOrganizations returns the organization the request was resolved to
func (h *ResourceHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs := []*models.Organization{}
	if ac := middleware.GetAuthContext(r.Context()); ac != nil && ac.Organization != nil {
		orgs = append(orgs, ac.Organization)
	}
	_ = utils.WriteOK(w, map[string]interface{}{"organizations": orgs})
}

// GetOrganization handles GET /api/v1/organizations/{orgId}. The
// organization resolver has already checked membership.
func (h *ResourceHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r.Context())
	if ac == nil || ac.Organization == nil {
		_ = utils.WriteNotFound(w, r, "Organization not found")
		return
	}
	_ = utils.WriteOK(w, map[string]interface{}{"organization": ac.Organization})
}

// NotFound answers unmatched routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, r, "The requested endpoint "+r.URL.RequestURI()+" was not found.")
}

// MethodNotAllowed answers a known path with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, r, http.StatusMethodNotAllowed, "Method "+r.Method+" is not allowed on "+r.URL.Path, nil)
}
