package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/googleinterns/receipt-roundup-sub000/internal/analysis"
	"github.com/googleinterns/receipt-roundup-sub000/internal/api/handlers"
	"github.com/googleinterns/receipt-roundup-sub000/internal/api/middleware"
	"github.com/googleinterns/receipt-roundup-sub000/internal/auth"
	"github.com/googleinterns/receipt-roundup-sub000/internal/config"
	"github.com/googleinterns/receipt-roundup-sub000/internal/imagestore"
	infraBQ "github.com/googleinterns/receipt-roundup-sub000/internal/infra/bigquery"
	"github.com/googleinterns/receipt-roundup-sub000/internal/jobs/inmemory"
	"github.com/googleinterns/receipt-roundup-sub000/internal/logger"
	"github.com/googleinterns/receipt-roundup-sub000/internal/pipeline"
)

func main() {
	cfg := config.Load()

	var (
		port   = flag.String("port", cfg.Port, "HTTP server port")
		bucket = flag.String("bucket", cfg.Bucket, "GCS bucket for receipt images (or set GCS_BUCKET env)")
	)
	flag.Parse()
	cfg.Port = *port
	cfg.Bucket = *bucket

	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	ctx := context.Background()

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

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	processor := pipeline.NewProcessor(repo, images, analyzer, log)

	// Start worker in background to process analysis jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting analysis worker")
		if err := jobQueue.Start(workerCtx, processor.Handler()); err != nil {
			log.Error().Err(err).Msg("Analysis worker stopped with error")
		}
	}()

	// Initialize handlers
	receiptsHandler := handlers.NewReceiptsHandler(repo, images, jobQueue, cfg.MaxUploadBytes, log)
	searchHandler := handlers.NewSearchHandler(repo, log)
	analyticsHandler := handlers.NewAnalyticsHandler(repo, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Receipts endpoints
	mux.HandleFunc("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			receiptsHandler.ListReceipts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/upload-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.CreateUploadURL(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			receiptID := strings.TrimPrefix(r.URL.Path, "/api/receipts/upload/")
			if receiptID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Receipt ID is required")
				return
			}
			receiptsHandler.UploadReceipt(w, r, receiptID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/", func(w http.ResponseWriter, r *http.Request) {
		receiptID := strings.TrimPrefix(r.URL.Path, "/api/receipts/")
		if receiptID == "" || strings.Contains(receiptID, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Receipt ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			receiptsHandler.GetReceipt(w, r, receiptID)
		case http.MethodPut:
			receiptsHandler.EditReceipt(w, r, receiptID)
		case http.MethodDelete:
			receiptsHandler.DeleteReceipt(w, r, receiptID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Search endpoint
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			searchHandler.Search(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Spending report endpoint
	mux.HandleFunc("/api/spending", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			analyticsHandler.SpendingReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check stays outside the auth boundary.
	root := http.NewServeMux()
	root.Handle("/api/", middleware.Auth(auth.NewHeaderService())(mux))
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(root),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
