package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// Ensure implementation satisfies interface at compile time.
var _ Uploader = (*GCSUploader)(nil)

// GCSUploader uploads report files to Google Cloud Storage.
type GCSUploader struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSUploader creates a new Google Cloud Storage uploader. An endpoint
// without explicit credentials is treated as an emulator and used
// unauthenticated.
func NewGCSUploader(cfg dto.GCSUploadConfig, logger *zap.Logger) (*GCSUploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("Using default GCP credentials")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("Using GCP credentials from file", zap.String("file", cfg.CredentialsFile))
	case cfg.Endpoint != "":
		clientOpts = append(clientOpts, option.WithoutAuthentication())
		logger.Info("Using unauthenticated GCS endpoint", zap.String("endpoint", cfg.Endpoint))
	default:
		logger.Info("No explicit credentials provided, using default GCP credentials")
	}

	client, err := storage.NewClient(context.Background(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS uploader created",
		zap.String("bucket", cfg.Bucket),
		zap.String("project_id", cfg.ProjectID),
	)

	return &GCSUploader{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Upload uploads the file at localPath to gs://bucket/key.
func (u *GCSUploader) Upload(ctx context.Context, localPath, key string) error {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	writer := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType(key)

	written, err := io.Copy(writer, file)
	if err != nil {
		writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	// Close finalizes the upload.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	u.logger.Info("Uploaded report file to GCS",
		zap.String("bucket", u.bucket),
		zap.String("object", key),
		zap.Int64("bytes_written", written),
		zap.Int64("total_duration_ms", time.Since(startTime).Milliseconds()),
	)
	return nil
}

// Backend returns the backend name.
func (u *GCSUploader) Backend() string {
	return UploadGCS
}

// Close closes the GCS client.
func (u *GCSUploader) Close() error {
	u.logger.Info("Closing GCS uploader")
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}
