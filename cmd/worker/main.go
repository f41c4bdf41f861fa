// Command worker runs the receipt analysis consumer on its own. Its queue is
// process-local, so it only sees jobs published inside this process; until a
// broker (Cloud Tasks, Pub/Sub) backs the Publisher/Consumer interfaces it
// serves as the wiring template for that deployment, while cmd/api runs the
// consumer in-process for real traffic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/googleinterns/receipt-roundup-sub000/internal/analysis"
	"github.com/googleinterns/receipt-roundup-sub000/internal/config"
	"github.com/googleinterns/receipt-roundup-sub000/internal/imagestore"
	infraBQ "github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/jobs/inmemory"
	"github.com/googleinterns/receipt-roundup-sub000/internal/logger"
	"github.com/googleinterns/receipt-roundup-sub000/internal/pipeline"
)

func main() {
	log := logger.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infraBQ.NewBigQueryReceiptRepository(ctx, cfg.ProjectID, cfg.Dataset, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt repository")
	}
	defer repo.Close()

	images, err := imagestore.NewGCSStore(ctx, cfg.Bucket, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}
	defer images.Close()

	analyzer := analysis.NewAnalyzer(analysis.NewGeminiExtractor(cfg.ModelName))
	processor := pipeline.NewProcessor(repo, images, analyzer, log)

	// In production the in-memory queue would be replaced with Cloud Tasks
	// or Pub/Sub.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	if err := jobQueue.Start(ctx, processor.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
