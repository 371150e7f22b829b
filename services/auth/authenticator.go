// Package auth resolves bearer tokens into principals and implements the
// login, refresh, logout and profile flows.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/models"
	"github.com/propchain/upkeep/repositories"
	"github.com/propchain/upkeep/services"
	"github.com/propchain/upkeep/services/principal"
	"github.com/propchain/upkeep/services/token"
)

// Authenticator turns an access token into the principal it belongs to.
// It performs at most one cache read, one credential store read and one
// cache write per call.
type Authenticator struct {
	tokens       *token.Service
	users        repositories.UserRepository
	principals   *principal.Cache
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewAuthenticator creates an Authenticator. storeTimeout bounds each
// credential store call; zero leaves the caller's deadline in charge.
func NewAuthenticator(tokens *token.Service, users repositories.UserRepository, principals *principal.Cache, storeTimeout time.Duration, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		tokens:       tokens,
		users:        users,
		principals:   principals,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Authenticate verifies an access token and loads its principal
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (*models.Principal, error) {
	claims, err := a.tokens.VerifyAccess(rawToken)
	if err != nil {
		return nil, services.ErrInvalidToken
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, services.ErrInvalidToken
	}

	if a.principals != nil {
		p, ok, err := a.principals.Get(ctx, userID)
		if err != nil {
			a.logger.Error("principal cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
			return nil, services.Internal(services.MsgAuthUnavailable, err)
		}
		if ok {
			p.SessionID = claims.SessionID
			return p, nil
		}
	}

	storeCtx, cancel := withStoreTimeout(ctx, a.storeTimeout)
	defer cancel()

	user, err := a.users.FindActiveByID(storeCtx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		a.logger.Warn("token for unknown or inactive user", zap.String("user_id", userID.String()))
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		a.logger.Error("credential store lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, services.Internal(services.MsgAuthUnavailable, err)
	}

	p := user.Principal()
	if a.principals != nil {
		if err := a.principals.Put(ctx, p); err != nil {
			a.logger.Error("principal cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
			return nil, services.Internal(services.MsgAuthUnavailable, err)
		}
	}
	p.SessionID = claims.SessionID
	return p, nil
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
