package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/rpsarena/config"
	"github.com/wfunc/rpsarena/events"
	"github.com/wfunc/rpsarena/logger"
	"github.com/wfunc/rpsarena/persistence"
	"github.com/wfunc/rpsarena/server"
)

func main() {
	// Initialize logger
	logger.Init("info", false)
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Development)

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Infof("Database connection successful (driver=%s).", cfg.Database.Driver)

	publisher, err := events.New(cfg.Events.NATSURL, cfg.Events.Subject)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to NATS: %v", err)
	}

	gameServer := server.NewGameServer(cfg, db, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- gameServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Server error: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Shutdown error: %v", err)
	}
}
