package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/propchain/upkeep/app"
	"github.com/propchain/upkeep/config"
	"github.com/propchain/upkeep/internal/observability"
	"github.com/propchain/upkeep/internal/server"
	"github.com/propchain/upkeep/routes"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth-mock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability, cfg.Environment)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	deps, err := app.NewMockDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	for _, u := range deps.DemoUsers.Users() {
		logger.Info("demo user available", zap.String("email", u.Email), zap.String("role", u.Role))
	}

	return server.Run(ctx, cfg.Server, routes.SetupMockRoutes(deps), deps.RunBackground, logger)
}
