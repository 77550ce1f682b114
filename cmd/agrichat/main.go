package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agrinet/agrichat/internal/api"
	"github.com/agrinet/agrichat/internal/auth"
	"github.com/agrinet/agrichat/internal/chat"
	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/gateway"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// The auth token carries who we are and which side of the chat we sit on
	identity, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		slog.Error("failed to read auth token", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken)

	ctrl := chat.NewController(client, identity)
	if err := ctrl.Start(ctx, cfg.InitialRef); err != nil {
		slog.Error("failed to start chat session", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	slog.Info("chat session started",
		"user_id", identity.UserID,
		"role", identity.Role,
		"listen_addr", cfg.ListenAddr,
	)

	srv := gateway.New(cfg, ctrl)
	if err := srv.Run(ctx); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}
