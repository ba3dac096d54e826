package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/storefront-api/cmd/storefront-api/app"
	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/bootstrap"
	"github.com/aq2208/storefront-api/internal/logging"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.Init(logging.Options{
		Component: cfg.App.Name,
		FilePath:  cfg.App.LogFile,
		Level:     cfg.App.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := bootstrap.InitWithConfig(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("storefront-api starting", "env", env, "http_addr", cfg.App.HTTPAddr, "grpc_addr", cfg.App.GRPCAddr)
	if err := app.Run(ctx, cfg, a); err != nil {
		logger.Error("server stopped", "err", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info("storefront-api stopped")
}
