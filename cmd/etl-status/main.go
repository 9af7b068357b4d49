package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/haoqt/mini-etl/etl/config"
	"github.com/haoqt/mini-etl/etl/database"
	"github.com/haoqt/mini-etl/etl/logging"
	"github.com/haoqt/mini-etl/etl/statusapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := logging.NewStructuredLogger(logging.ParseLogLevel(cfg.Logging.Level), os.Stdout)

	ctx := context.Background()
	svc, err := database.NewPostgresService(ctx, &database.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", err)
		os.Exit(1)
	}
	defer svc.Close()

	ledger := database.NewLedgerRepository(svc)

	addr := ":" + getEnv("STATUS_PORT", "8081")
	srv := statusapi.New(addr, ledger, logger)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status API failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("status API shutdown failed", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
