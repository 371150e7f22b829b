package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/cache"
	"github.com/propchain/upkeep/config"
	"github.com/propchain/upkeep/middleware"
	"github.com/propchain/upkeep/repositories"
	"github.com/propchain/upkeep/repositories/memory"
	"github.com/propchain/upkeep/repositories/postgres"
	"github.com/propchain/upkeep/services/auth"
	"github.com/propchain/upkeep/services/principal"
	"github.com/propchain/upkeep/services/ratelimit"
	"github.com/propchain/upkeep/services/session"
	"github.com/propchain/upkeep/services/token"
)

// MockIssuer is the issuer claim of the mock auth service when JWT_ISSUER
// is left at its default
const MockIssuer = "propchain-auth-mock"

const cleanupInterval = time.Minute

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil for the mock service
	Logger *zap.Logger
	Store  cache.Store

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users         repositories.UserRepository
	Organizations repositories.OrganizationRepository
	APITokens     repositories.APITokenRepository // nil for the mock service
	DemoUsers     *memory.Store                   // nil for the API

	// Services
	Tokens        *token.Service
	Sessions      *session.Manager
	Principals    *principal.Cache
	RateLimiter   *ratelimit.RateLimitService
	AuthService   *auth.Service
	Authenticator *auth.Authenticator

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	OrgResolver    *middleware.OrganizationResolver
	RateLimit      *middleware.RateLimitMiddleware
	APIKeyAuth     *middleware.APIKeyAuth // nil for the mock service

	memoryStore *cache.MemoryStore
}

// NewDependencies wires the main API: PostgreSQL credentials and Redis (or
// in-memory) sessions, with one session per user.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if err := cfg.ValidateForAPI(); err != nil {
		return nil, fmt.Errorf("invalid API configuration: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	repos := deps.RepoFactory.NewRepositories()
	deps.Users = repos.Users
	deps.Organizations = repos.Organizations
	deps.APITokens = repos.APITokens
	logger.Info("repositories initialized")

	if err := deps.initStore(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := deps.initAuth(cfg, cfg.Auth.Issuer, auth.SessionPerUser, cfg.Auth.SessionTTL); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}
	deps.APIKeyAuth = middleware.NewAPIKeyAuth(deps.APITokens, cfg.Auth.StoreTimeout, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewMockDependencies wires the standalone mock auth service: fixture
// credentials and one session per login, kept for the refresh token lifetime.
func NewMockDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	fixtures, err := memory.NewStore(memory.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo users: %w", err)
	}
	deps.Users = fixtures
	deps.Organizations = fixtures
	deps.DemoUsers = fixtures

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	issuer := cfg.Auth.Issuer
	if issuer == config.DefaultIssuer {
		issuer = MockIssuer
	}
	if err := deps.initAuth(cfg, issuer, auth.SessionPerLogin, cfg.Auth.RefreshTokenTTL); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("mock auth dependencies initialized", zap.Int("demo_users", len(fixtures.Users())))
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initStore selects Redis when an address is configured and the in-memory
// store otherwise
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		d.memoryStore = cache.NewMemoryStore(cache.MemoryOptions{
			MaxEntries: cfg.Redis.MemoryMaxEntries,
			Logger:     d.Logger,
		})
		d.Store = d.memoryStore
		d.Logger.Warn("REDIS_ADDR not set, using in-memory session store",
			zap.Int("max_entries", cfg.Redis.MemoryMaxEntries))
		return nil
	}

	store := cache.NewRedisStore(cache.NewRedisClient(cfg.Redis))
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	d.Store = store
	d.Logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config, issuer string, mode auth.SessionMode, sessionTTL time.Duration) error {
	tokens, err := token.NewService(token.Options{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     issuer,
		Audience:   cfg.Auth.Audience,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	d.Tokens = tokens

	d.Sessions = session.NewManager(d.Store, d.Logger)
	d.Principals = principal.NewCache(d.Store, principal.Options{TTL: cfg.Auth.PrincipalCacheTTL}, d.Logger)
	d.RateLimiter = ratelimit.NewRateLimitService(d.Store, d.Logger)

	d.AuthService = auth.NewService(d.Users, tokens, d.Sessions, d.Principals, auth.Options{
		Mode:         mode,
		SessionTTL:   sessionTTL,
		StoreTimeout: cfg.Auth.StoreTimeout,
	}, d.Logger)
	d.Authenticator = auth.NewAuthenticator(tokens, d.Users, d.Principals, cfg.Auth.StoreTimeout, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authenticator, d.Logger)
	d.OrgResolver = middleware.NewOrganizationResolver(d.Organizations, cfg.Auth.StoreTimeout, d.Logger)
	d.RateLimit = middleware.NewRateLimitMiddleware(d.RateLimiter, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("issuer", issuer),
		zap.String("audience", cfg.Auth.Audience),
		zap.Bool("per_login_sessions", mode == auth.SessionPerLogin))
	return nil
}

// RunBackground runs housekeeping until ctx is done. Only the in-memory
// store needs it; Redis expires keys itself.
func (d *Dependencies) RunBackground(ctx context.Context) error {
	if d.memoryStore == nil {
		<-ctx.Done()
		return nil
	}
	d.memoryStore.StartCleanupWorker(ctx, cleanupInterval)
	return nil
}

// ActiveSessions counts live sessions
func (d *Dependencies) ActiveSessions(ctx context.Context) (int, error) {
	entries, err := d.Sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	return errors.Join(errs...)
}
