package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of a login. In the API it is keyed by
// user id; the mock auth service keys it by SessionID.
type Session struct {
	SessionID      string    `json:"sessionId,omitempty"`
	UserID         uuid.UUID `json:"userId"`
	Email          string    `json:"email,omitempty"`
	OrganizationID uuid.UUID `json:"organizationId,omitempty"`
	Role           string    `json:"role,omitempty"`
	Permissions    []string  `json:"permissions,omitempty"`
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

// NewSession builds a session for the principal at the given time
func NewSession(sessionID string, p *Principal, ip, userAgent string, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		UserID:         p.UserID,
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		Permissions:    append([]string(nil), p.Permissions...),
		IP:             ip,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivity:   now,
	}
}
