package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/services/principal"
	"github.com/propchain/upkeep/services/session"
	"github.com/propchain/upkeep/services/token"
)

// SessionMode selects how login sessions are keyed
type SessionMode int

const (
	// SessionPerUser keeps one session per user, keyed by user id
	SessionPerUser SessionMode = iota
	// SessionPerLogin creates a session id per login and binds refresh tokens to it
	SessionPerLogin
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ClientInfo is request metadata recorded on sessions and in logs
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User         *models.UserProfile `json:"user"`
	Token        string              `json:"token"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	SessionID    string              `json:"sessionId,omitempty"`
}

// RefreshResponse is returned by a successful refresh
type RefreshResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileResponse wraps the current user's profile
type ProfileResponse struct {
	User *models.UserProfile `json:"user"`
}

// Options configures a Service
type Options struct {
	Mode         SessionMode
	SessionTTL   time.Duration
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Service implements the login, refresh, logout and profile flows
type Service struct {
	users      repositories.UserRepository
	tokens     *token.Service
	sessions   *session.Manager
	principals *principal.Cache
	opts       Options
	logger     *zap.Logger
}

// NewService creates an auth Service. principals may be nil.
func NewService(users repositories.UserRepository, tokens *token.Service, sessions *session.Manager, principals *principal.Cache, opts Options, logger *zap.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		principals: principals,
		opts:       opts,
		logger:     logger,
	}
}

// Mode reports how sessions are keyed
func (s *Service) Mode() SessionMode {
	return s.opts.Mode
}

// Login checks credentials, opens a session and issues a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	user, err := s.users.FindActiveByEmail(storeCtx, req.Email)
	cancel()
	if errors.Is(err, repositories.ErrNotFound) {
		s.logger.Warn("login attempt with invalid email",
			zap.String("email", req.Email), zap.String("ip", client.IP))
		return nil, services.ErrInvalidCredentials
	}
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login attempt with invalid password",
			zap.String("user_id", user.ID.String()),
			zap.String("email", req.Email),
			zap.String("ip", client.IP))
		return nil, services.ErrInvalidCredentials
	}

	now := s.opts.Now()
	p := user.Principal()

	sessionID := ""
	if s.opts.Mode == SessionPerLogin {
		sessionID = uuid.NewString()
	}

	accessToken, expiresAt, err := s.tokens.IssueAccessToken(p, sessionID)
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}
	refreshToken, _, err := s.tokens.IssueRefreshToken(p.UserID, sessionID)
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	sess := models.NewSession(sessionID, p, client.IP, client.UserAgent, now)
	if err := s.sessions.SetSession(ctx, s.sessionKey(p.UserID, sessionID), sess, s.opts.SessionTTL); err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	storeCtx, cancel = withStoreTimeout(ctx, s.opts.StoreTimeout)
	err = s.users.UpdateLastLogin(storeCtx, p.UserID, now)
	cancel()
	if err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}

	s.logger.Info("user logged in successfully",
		zap.String("user_id", p.UserID.String()),
		zap.String("email", p.Email),
		zap.String("organization_id", p.OrganizationID.String()),
		zap.String("session_id", sessionID),
		zap.String("ip", client.IP))

	return &LoginResponse{
		User:         loginProfile(user),
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		SessionID:    sessionID,
	}, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*RefreshResponse, error) {
	if refreshToken == "" {
		return nil, services.BadRequest("Refresh token is required")
	}

	resp, err := s.refresh(ctx, refreshToken, client)
	if err != nil && s.opts.Mode == SessionPerUser && services.IsUnauthorizedError(err) {
		// per-user sessions never tell the caller why a refresh token was refused
		return nil, services.Unauthorized(services.MsgInvalidRefreshToken)
	}
	return resp, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string, client ClientInfo) (*RefreshResponse, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if errors.Is(err, token.ErrWrongTokenType) {
		return nil, services.Unauthorized(services.MsgInvalidTokenType)
	}
	if err != nil {
		return nil, services.Unauthorized(services.MsgInvalidRefreshToken)
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, services.Unauthorized(services.MsgInvalidRefreshToken)
	}

	if s.opts.Mode == SessionPerLogin {
		if claims.SessionID == "" {
			return nil, services.ErrSessionInvalid
		}
		sess, err := s.sessions.GetSession(ctx, claims.SessionID)
		if err != nil {
			return nil, services.Internal(services.MsgAuthUnavailable, err)
		}
		if sess == nil || sess.UserID != userID {
			s.logger.Warn("refresh with expired or foreign session",
				zap.String("user_id", userID.String()),
				zap.String("session_id", claims.SessionID),
				zap.String("ip", client.IP))
			return nil, services.ErrSessionInvalid
		}
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	user, err := s.users.FindActiveByID(storeCtx, userID)
	cancel()
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	accessToken, expiresAt, err := s.tokens.IssueAccessToken(user.Principal(), claims.SessionID)
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	s.touch(ctx, s.sessionKey(userID, claims.SessionID))

	s.logger.Info("token refreshed successfully",
		zap.String("user_id", userID.String()),
		zap.String("session_id", claims.SessionID),
		zap.String("ip", client.IP))

	return &RefreshResponse{Token: accessToken, ExpiresAt: expiresAt}, nil
}

// Logout ends the session of the authenticated principal, if any. It never
// fails: logging out without a valid token is still a logout.
func (s *Service) Logout(ctx context.Context, p *models.Principal, client ClientInfo) {
	if p == nil || p.IsAPIToken() {
		s.logger.Debug("logout without an authenticated user", zap.String("ip", client.IP))
		return
	}
	userID := p.UserID

	if s.opts.Mode == SessionPerUser || p.SessionID != "" {
		if err := s.sessions.DeleteSession(ctx, s.sessionKey(userID, p.SessionID)); err != nil {
			s.logger.Warn("failed to delete session on logout", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	if s.principals != nil {
		if err := s.principals.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("failed to invalidate cached principal", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	s.logger.Info("user logged out successfully",
		zap.String("user_id", userID.String()),
		zap.String("session_id", p.SessionID),
		zap.String("ip", client.IP))
}

// Profile returns the full profile of the token's user
func (s *Service) Profile(ctx context.Context, rawToken string) (*ProfileResponse, error) {
	if rawToken == "" {
		return nil, services.Unauthorized(services.MsgNoProfileToken)
	}

	claims, err := s.tokens.VerifyAccess(rawToken)
	if err != nil {
		return nil, services.ErrInvalidToken
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, services.ErrInvalidToken
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.opts.StoreTimeout)
	user, err := s.users.FindActiveByID(storeCtx, userID)
	cancel()
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	s.touch(ctx, s.sessionKey(userID, claims.SessionID))

	profile := user.Profile()
	profile.SessionID = claims.SessionID
	return &ProfileResponse{User: profile}, nil
}

// ListSessions returns every live session
func (s *Service) ListSessions(ctx context.Context) ([]session.Entry, error) {
	entries, err := s.sessions.List(ctx)
	if err != nil {
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}
	return entries, nil
}

// sessionKey returns "" when the token carries no session in per-login mode
func (s *Service) sessionKey(userID uuid.UUID, sessionID string) string {
	if s.opts.Mode == SessionPerLogin {
		return sessionID
	}
	return userID.String()
}

// touch refreshes lastActivity. A missing session is not an error.
func (s *Service) touch(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := s.sessions.Touch(ctx, key, s.opts.Now()); err != nil {
		s.logger.Warn("failed to touch session", zap.String("session_key", key), zap.Error(err))
	}
}

// loginProfile is the reduced user object returned at login
func loginProfile(u *models.UserRecord) *models.UserProfile {
	full := u.Profile()
	return &models.UserProfile{
		ID:               full.ID,
		Email:            full.Email,
		FirstName:        full.FirstName,
		LastName:         full.LastName,
		OrganizationID:   full.OrganizationID,
		OrganizationName: full.OrganizationName,
		OrganizationSlug: full.OrganizationSlug,
		Role:             full.Role,
		Permissions:      full.Permissions,
	}
}
