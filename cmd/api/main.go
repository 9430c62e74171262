package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/infra/app"
	"github.com/vyapar-labs/b2b-platform/internal/infra/config"
	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error("application terminated", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
