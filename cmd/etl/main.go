package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/haoqt/mini-etl/etl/config"
	"github.com/haoqt/mini-etl/etl/database"
	"github.com/haoqt/mini-etl/etl/loader"
	"github.com/haoqt/mini-etl/etl/logging"
	"github.com/haoqt/mini-etl/etl/orchestrator"
	"github.com/haoqt/mini-etl/etl/reader"
	"github.com/haoqt/mini-etl/etl/transform"
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
	logger.Info("mini-etl starting", logging.String("run_id", cfg.Run.RunID))

	src, err := buildReader(cfg.Reader)
	if err != nil {
		logger.Error("failed to construct reader", err)
		os.Exit(1)
	}

	pipeline := transform.NewPipeline(
		transform.CleanStep{},
		transform.NormalizeStep{},
		transform.NewEnrichStep(cfg.Run.CountryMap),
	)

	ctx := context.Background()

	dbCfg := &database.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}

	svc, err := database.NewPostgresService(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", err)
		os.Exit(1)
	}
	defer svc.Close()

	ledger := database.NewLedgerRepository(svc)
	if err := ledger.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure ledger schema", err)
		os.Exit(1)
	}

	ld := loader.NewPostgresLoader(loader.NewPostgresDB(svc), loader.DefaultTargetTable(), logger)

	o := orchestrator.New(src, pipeline, ld, ledger, logger, orchestrator.Config{
		RunID:        cfg.Run.RunID,
		MaxRetries:   cfg.Run.MaxRetries,
		RetryBackoff: cfg.Run.RetryBackoff,
	})

	if err := o.Run(ctx); err != nil {
		logger.Error("run aborted", err)
		os.Exit(1)
	}

	logger.Info("mini-etl run complete", logging.String("run_id", cfg.Run.RunID))
}

func buildReader(cfg config.ReaderConfig) (reader.Reader, error) {
	switch cfg.Format {
	case config.FormatJSONLines:
		return reader.NewJSONLinesReader(cfg.SourcePath, cfg.ChunkSize)
	default:
		return reader.NewDelimitedReader(cfg.SourcePath, cfg.ChunkSize, cfg.Delimiter)
	}
}
