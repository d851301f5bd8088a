package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wellrag/app/server"
	"wellrag/config"
	"wellrag/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.NewServer(cfg, logger)
	if err := s.Run(ctx); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
