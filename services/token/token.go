// Package token issues and verifies the HS256 access and refresh tokens
// shared by the API and the mock auth service.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/propchain/upkeep/models"
)

// Type distinguishes access tokens from refresh tokens
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and expiry alike
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa
	ErrWrongTokenType = errors.New("invalid token type")
)

// Claims is the payload of both token types
type Claims struct {
	UserID         string `json:"userId"`
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Role           string `json:"role,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	Type           Type   `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// UserUUID parses the userId claim
func (c *Claims) UserUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Options configures a Service
type Options struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Service signs and verifies tokens. It holds no mutable state.
type Service struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewService creates a token Service
func NewService(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be greater than zero")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(opts.Now),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &Service{
		secret:     []byte(opts.Secret),
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
		parser:     jwt.NewParser(parserOpts...),
	}, nil
}

// AccessTTL returns the configured access token lifetime
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken signs a short-lived token for the principal.
// sessionID is embedded when non-empty.
func (s *Service) IssueAccessToken(p *models.Principal, sessionID string) (string, time.Time, error) {
	if p == nil || p.UserID == uuid.Nil {
		return "", time.Time{}, errors.New("principal with a user id is required")
	}
	claims := &Claims{
		UserID:         p.UserID.String(),
		Email:          p.Email,
		OrganizationID: p.OrganizationID.String(),
		Role:           p.Role,
		SessionID:      sessionID,
		Type:           TypeAccess,
	}
	return s.sign(claims, s.accessTTL)
}

// IssueRefreshToken signs a long-lived token that can only mint new access tokens
func (s *Service) IssueRefreshToken(userID uuid.UUID, sessionID string) (string, time.Time, error) {
	if userID == uuid.Nil {
		return "", time.Time{}, errors.New("user id is required")
	}
	claims := &Claims{
		UserID:    userID.String(),
		SessionID: sessionID,
		Type:      TypeRefresh,
	}
	return s.sign(claims, s.refreshTTL)
}

func (s *Service) sign(claims *Claims, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, issuer, audience and expiry. A token is rejected
// at its expiry instant, not one second after.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess verifies a token and rejects refresh tokens
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type == TypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// VerifyRefresh verifies a token and requires it to be a refresh token
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
