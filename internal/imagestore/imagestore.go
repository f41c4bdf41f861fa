// Package imagestore persists receipt images in a cloud object store and
// hands back gs:// URIs for the rest of the system to reference.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Matches JPEG image filenames; receipts are uploaded as photos.
var validFilename = regexp.MustCompile(`(?i)^\S+\.jpe?g$`)

// Store provides access to receipt image blobs.
type Store interface {
	// Upload streams an image into the bucket and returns its gs:// URI.
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)

	// Fetch downloads the image bytes at the given gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Delete removes the image at the given gs:// URI.
	Delete(ctx context.Context, uri string) error
}

// GCSStore is the Google Cloud Storage implementation of Store. It holds a
// shared client so each operation does not open a new connection.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store writing into the given bucket.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: creating storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close closes the underlying storage client.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upload implements the Store interface.
func (s *GCSStore) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copying image to object writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch implements the Store interface.
func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object bytes: %w", err)
	}

	return data, nil
}

// Delete implements the Store interface.
func (s *GCSStore) Delete(ctx context.Context, uri string) error {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return err
	}

	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("Delete: deleting object %s/%s: %w", bucket, object, err)
	}

	return nil
}

// SplitURI splits a gs:// URI into bucket and object path.
func SplitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid storage URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the bare filename from a gs:// URI,
// e.g. "gs://bucket/folder/receipt.jpg" -> "receipt.jpg".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// IsValidFilename reports whether the uploaded filename looks like a JPEG.
func IsValidFilename(filename string) bool {
	return validFilename.MatchString(filename)
}
