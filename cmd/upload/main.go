// Command upload pushes a local receipt photo to the images bucket. Useful
// for seeding test data without going through the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/api/option"

	"github.com/googleinterns/receipt-roundup-sub000/internal/imagestore"
	"github.com/googleinterns/receipt-roundup-sub000/internal/logger"
)

func main() {
	log := logger.New()

	var (
		bucketName  string
		objectName  string
		filePath    string
		credentials string
	)

	flag.StringVar(&bucketName, "bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name (required)")
	flag.StringVar(&objectName, "object", "", "GCS object name (optional; defaults to file name)")
	flag.StringVar(&filePath, "file", "", "Path to local JPEG file (required)")
	flag.StringVar(&credentials, "credentials", os.Getenv("GOOGLE_CREDENTIALS_FILE"), "Path to a service account key file (optional)")
	flag.Parse()

	if bucketName == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload -bucket BUCKET_NAME -file /path/to/receipt.jpg [-object OBJECT_NAME]")
	}

	if !imagestore.IsValidFilename(filepath.Base(filePath)) {
		log.Fatal().Str("file", filePath).Msg("Receipt images must be .jpg or .jpeg files")
	}

	if objectName == "" {
		objectName = filepath.Base(filePath)
	}

	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	store, err := imagestore.NewGCSStore(ctx, bucketName, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}
	defer store.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	defer f.Close()

	log.Info().
		Str("bucket", bucketName).
		Str("object", objectName).
		Str("file", filePath).
		Msg("Uploading receipt image")

	uri, err := store.Upload(ctx, objectName, "image/jpeg", f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", filePath, uri)
}
