package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"collabd/internal/app"
	"collabd/pkg/config"
	"collabd/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")

	fl := config.ParseFlags()
	cfg, err := config.LoadEffective(fl)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server_stopped")
}
