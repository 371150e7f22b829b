package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/middleware"
	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/services/auth"
	"github.com/propchain/upkeep/utils"
)

// LogoutResponse acknowledges a logout
type LogoutResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SessionView is one entry of the session listing
type SessionView struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	CreatedAt    string `json:"createdAt"`
	LastActivity string `json:"lastActivity"`
	IP           string `json:"ip,omitempty"`
}

// SessionsResponse lists live sessions
type SessionsResponse struct {
	ActiveSessions int           `json:"activeSessions"`
	Sessions       []SessionView `json:"sessions"`
}

// ServiceInfo describes the mock auth service
type ServiceInfo struct {
	Service     string          `json:"service"`
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	Features    map[string]bool `json:"features"`
	MockUsers   []DemoUser      `json:"mockUsers"`
}

// DemoUser is a fixture account advertised by the info endpoint
type DemoUser struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// DemoUserLister lists the fixture accounts of the mock service
type DemoUserLister interface {
	Users() []*models.UserRecord
}

// AuthHandler handles the /api/v1/auth endpoints
type AuthHandler struct {
	service     *auth.Service
	demoUsers   DemoUserLister
	environment string
	errors      *ErrorResponder
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. demoUsers is nil outside the
// mock service.
func NewAuthHandler(service *auth.Service, demoUsers DemoUserLister, environment string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:     service,
		demoUsers:   demoUsers,
		environment: environment,
		errors:      NewErrorResponder(logger, environment),
		logger:      logger,
	}
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.errors.HandleDecodeError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req, clientInfo(r))
	if err != nil {
		h.errors.HandleServiceError(w, r, err)
		return
	}
	_ = utils.WriteOK(w, resp)
}

// HandleRefresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.errors.HandleDecodeError(w, r, err)
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		h.errors.HandleServiceError(w, r, err)
		return
	}
	_ = utils.WriteOK(w, resp)
}

// HandleLogout handles POST /api/v1/auth/logout behind OptionalAuth. It
// always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), middleware.GetPrincipalFromContext(r.Context()), clientInfo(r))
	_ = utils.WriteOK(w, LogoutResponse{
		Message:   "Logged out successfully",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleProfile handles GET /api/v1/auth/profile
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Profile(r.Context(), middleware.BearerToken(r))
	if err != nil {
		h.errors.HandleServiceError(w, r, err)
		return
	}
	_ = utils.WriteOK(w, resp)
}

// HandleInfo handles GET /api/v1/auth/info
func (h *AuthHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info := ServiceInfo{
		Service:     "Property Upkeep Records - Authentication Service (Mock)",
		Version:     "1.0.0",
		Environment: h.environment,
		Features: map[string]bool{
			"login":       true,
			"refresh":     true,
			"logout":      true,
			"profile":     true,
			"multiTenant": true,
		},
		MockUsers: []DemoUser{},
	}
	if h.demoUsers != nil {
		for _, u := range h.demoUsers.Users() {
			info.MockUsers = append(info.MockUsers, DemoUser{
				Email:        u.Email,
				Role:         u.Role,
				Organization: u.OrganizationName,
			})
		}
	}
	_ = utils.WriteOK(w, info)
}

// HandleSessions handles GET /api/v1/auth/sessions. The listing is a
// debugging aid and only exists in development.
func (h *AuthHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if !h.errors.development {
		_ = utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
		return
	}

	entries, err := h.service.ListSessions(r.Context())
	if err != nil {
		h.errors.HandleServiceError(w, r, err)
		return
	}

	resp := SessionsResponse{
		ActiveSessions: len(entries),
		Sessions:       make([]SessionView, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Sessions = append(resp.Sessions, SessionView{
			SessionID:    e.ID,
			UserID:       e.Session.UserID.String(),
			CreatedAt:    e.Session.CreatedAt.UTC().Format(time.RFC3339),
			LastActivity: e.Session.LastActivity.UTC().Format(time.RFC3339),
			IP:           e.Session.IP,
		})
	}
	_ = utils.WriteOK(w, resp)
}

func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
